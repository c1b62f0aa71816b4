// Package rolemap assigns CLINICIAN / PATIENT roles to diarized speakers (S3).
//
// Scoring works over two anonymous buckets so the model is independent of the
// diarization vocabulary; MapRoles wraps it for arbitrary speaker labels and
// refuses to return a map that leaves any speaker without a role.
package rolemap

import (
	"math"

	"ambient-narrative-go/internal/types"
)

type Bucket string

const (
	BucketA Bucket = "A"
	BucketB Bucket = "B"
)

// Logistic weights over the A−B feature deltas.
const (
	weightQuestion   = 3.0
	weightStartFirst = 1.0
	weightTalkShare  = 0.5
	weightSelfReport = -0.3

	minimalBand       = 0.1
	neutralConfidence = 0.5
)

// Segment is one stretch of speech attributed to a bucket.
type Segment struct {
	Start  float64
	End    float64
	Bucket Bucket
	Text   string
}

type BucketRoles struct {
	A types.Role `json:"A"`
	B types.Role `json:"B"`
}

func (b BucketRoles) For(bucket Bucket) types.Role {
	if bucket == BucketB {
		return b.B
	}
	return b.A
}

// BucketRolesFr carries the French display labels.
type BucketRolesFr struct {
	A string `json:"A"`
	B string `json:"B"`
}

type Features struct {
	QuestionRatioA   float64 `json:"questionRatioA"`
	QuestionRatioB   float64 `json:"questionRatioB"`
	SelfReportRatioA float64 `json:"selfReportRatioA"`
	SelfReportRatioB float64 `json:"selfReportRatioB"`
	StartsFirstA     float64 `json:"startsFirstA"`
	TalkShareA       float64 `json:"talkShareA"`
	TalkShareB       float64 `json:"talkShareB"`
}

type Result struct {
	RoleMap    BucketRoles   `json:"roleMap"`
	RoleMapFr  BucketRolesFr `json:"roleMapFr"`
	Score      float64       `json:"score"`
	Confidence float64       `json:"confidence"`
	Features   Features      `json:"features"`
}

func frenchLabel(r types.Role) string {
	if r == types.RoleClinician {
		return "CLINICIEN"
	}
	return "PATIENT"
}

func newResult(aIsClinician bool, score, confidence float64, f Features) Result {
	roles := BucketRoles{A: types.RolePatient, B: types.RoleClinician}
	if aIsClinician {
		roles = BucketRoles{A: types.RoleClinician, B: types.RolePatient}
	}
	return Result{
		RoleMap:    roles,
		RoleMapFr:  BucketRolesFr{A: frenchLabel(roles.A), B: frenchLabel(roles.B)},
		Score:      score,
		Confidence: confidence,
		Features:   f,
	}
}

// DefaultResult is returned when either bucket has no speech.
func DefaultResult() Result {
	return newResult(true, neutralConfidence, neutralConfidence, Features{TalkShareA: 0.5, TalkShareB: 0.5})
}

type bucketFeatures struct {
	questionRatio   float64
	selfReportRatio float64
	duration        float64
	firstStart      float64
}

func extract(segs []Segment) bucketFeatures {
	var f bucketFeatures
	questions, selfReports, words := 0, 0, 0
	f.firstStart = math.Inf(1)
	for _, s := range segs {
		if s.End > s.Start {
			f.duration += s.End - s.Start
		}
		f.firstStart = min(f.firstStart, s.Start)
		if isQuestion(s.Text) {
			questions++
		}
		toks := tokens(s.Text)
		words += len(toks)
		selfReports += countSelfReports(toks)
	}
	if len(segs) > 0 {
		f.questionRatio = float64(questions) / float64(len(segs))
	}
	if words > 0 {
		f.selfReportRatio = float64(selfReports) / float64(words) * 100
	}
	return f
}

// Map scores bucket A against bucket B. A is CLINICIAN iff the logistic score
// is at least 0.5.
func Map(segments []Segment) Result {
	var a, b []Segment
	for _, s := range segments {
		if s.Bucket == BucketB {
			b = append(b, s)
		} else {
			a = append(a, s)
		}
	}
	if len(a) == 0 || len(b) == 0 {
		return DefaultResult()
	}

	fa, fb := extract(a), extract(b)

	talkA, talkB := 0.5, 0.5
	if total := fa.duration + fb.duration; total > 0 {
		talkA, talkB = fa.duration/total, fb.duration/total
	}

	deltaFirst := 0.0
	switch {
	case fa.firstStart < fb.firstStart:
		deltaFirst = 1
	case fb.firstStart < fa.firstStart:
		deltaFirst = -1
	}
	deltaQuestion := fa.questionRatio - fb.questionRatio
	deltaSelf := fa.selfReportRatio - fb.selfReportRatio
	deltaTalk := talkA - talkB

	score := logistic(weightQuestion*deltaQuestion +
		weightStartFirst*deltaFirst +
		weightTalkShare*deltaTalk +
		weightSelfReport*deltaSelf)

	minimal := fa.questionRatio+fb.questionRatio == 0 &&
		fa.selfReportRatio+fb.selfReportRatio == 0 &&
		math.Abs(deltaTalk) < minimalBand &&
		math.Abs(deltaFirst) < minimalBand

	confidence := math.Max(score, 1-score)
	if minimal {
		confidence = neutralConfidence
	}

	startsFirstA := 0.0
	if deltaFirst > 0 {
		startsFirstA = 1
	}
	return newResult(score >= 0.5, score, confidence, Features{
		QuestionRatioA:   fa.questionRatio,
		QuestionRatioB:   fb.questionRatio,
		SelfReportRatioA: fa.selfReportRatio,
		SelfReportRatioB: fb.selfReportRatio,
		StartsFirstA:     startsFirstA,
		TalkShareA:       talkA,
		TalkShareB:       talkB,
	})
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Swap exchanges CLINICIAN and PATIENT, for recordings where the diarized
// "clinician" is support staff speaking for the patient.
func Swap(rm types.RoleMap) types.RoleMap {
	out := make(types.RoleMap, len(rm))
	for spk, role := range rm {
		out[spk] = role.Opposite()
	}
	return out
}
