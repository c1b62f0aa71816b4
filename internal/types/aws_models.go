package types

import (
	"strconv"
	"strings"
)

// RawResult is the AWS Transcribe job output consumed by S1. speaker_labels may
// appear either at the top level or under results depending on the producer.
type RawResult struct {
	JobName       string         `json:"jobName,omitempty"`
	Results       RawResults     `json:"results"`
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
}

type RawResults struct {
	Transcripts []struct {
		Transcript string `json:"transcript"`
	} `json:"transcripts,omitempty"`
	Items         []Item         `json:"items"`
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
	ChannelLabels *ChannelLabels `json:"channel_labels,omitempty"`
	LanguageCode  string         `json:"language_code,omitempty"`
}

// SpeakerLabels contains speaker diarization information
type SpeakerLabels struct {
	Speakers int       `json:"speakers,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	SpeakerLabel string        `json:"speaker_label"`
	Items        []SegmentItem `json:"items"`
}

type SegmentItem struct {
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	SpeakerLabel string `json:"speaker_label,omitempty"`
}

// ChannelLabels is present when channel identification ran instead of diarization.
type ChannelLabels struct {
	NumberOfChannels int       `json:"number_of_channels,omitempty"`
	Channels         []Channel `json:"channels"`
}

type Channel struct {
	ChannelLabel string `json:"channel_label"`
	Items        []Item `json:"items"`
}

const (
	ItemPronunciation = "pronunciation"
	ItemPunctuation   = "punctuation"
)

// Item represents individual words/items in the transcription
type Item struct {
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	Type         string        `json:"type"`
	Alternatives []Alternative `json:"alternatives"`
	SpeakerLabel string        `json:"speaker_label,omitempty"`
	ChannelLabel string        `json:"channel_label,omitempty"`
}

// Alternative represents word alternatives
type Alternative struct {
	Confidence string `json:"confidence"`
	Content    string `json:"content"`
}

// Segments returns the diarization segments wherever the producer placed them.
func (r *RawResult) Segments() []Segment {
	if r == nil {
		return nil
	}
	if r.SpeakerLabels != nil && len(r.SpeakerLabels.Segments) > 0 {
		return r.SpeakerLabels.Segments
	}
	if r.Results.SpeakerLabels != nil {
		return r.Results.SpeakerLabels.Segments
	}
	return nil
}

// Channels returns channel-identification output, if any.
func (r *RawResult) Channels() []Channel {
	if r == nil || r.Results.ChannelLabels == nil {
		return nil
	}
	return r.Results.ChannelLabels.Channels
}

func (i Item) Content() string {
	if len(i.Alternatives) == 0 {
		return ""
	}
	return i.Alternatives[0].Content
}

func (i Item) Confidence() float64 {
	if len(i.Alternatives) == 0 {
		return 0
	}
	return ParseSeconds(i.Alternatives[0].Confidence)
}

func (i Item) Start() float64 { return ParseSeconds(i.StartTime) }
func (i Item) End() float64   { return ParseSeconds(i.EndTime) }

func (i Item) HasTiming() bool {
	return strings.TrimSpace(i.StartTime) != "" && strings.TrimSpace(i.EndTime) != ""
}

func (s Segment) Start() float64 { return ParseSeconds(s.StartTime) }
func (s Segment) End() float64   { return ParseSeconds(s.EndTime) }

// ParseSeconds parses the decimal strings AWS uses for times and confidences.
// Unparseable values read as zero.
func ParseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
