package narrative

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"ambient-narrative-go/internal/types"
)

func cleaned(turns ...types.CleanedTurn) *types.CleanedDialog {
	return &types.CleanedDialog{Turns: turns}
}

func ct(spk string, role types.Role, start, end float64, text string) types.CleanedTurn {
	return types.CleanedTurn{
		Turn: types.Turn{Speaker: spk, StartTime: start, EndTime: end, Text: text, Confidence: 1},
		Role: role,
	}
}

func TestRenderSingleSpeaker(t *testing.T) {
	res, err := Render(cleaned(ct("spk_0", types.RolePatient, 0, 2, "je souffre de douleur")))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Format != types.FormatSingleBlock {
		t.Errorf("format = %s", res.Format)
	}
	if res.Content != "Je souffre de douleur." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metadata.WordCount != 4 || res.Metadata.PatientTurns != 1 || res.Metadata.TotalSpeakers != 1 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestRenderRolePrefixed(t *testing.T) {
	res, err := Render(cleaned(
		ct("spk_0", types.RolePatient, 0, 3, "Bonjour docteur,"),
		ct("spk_1", types.RoleClinician, 4, 7, "Comment?"),
	))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Format != types.FormatRolePrefixed {
		t.Fatalf("format = %s", res.Format)
	}
	want := "PATIENT: Bonjour docteur.\nCLINICIAN: Comment?"
	if res.Content != want {
		t.Errorf("content = %q, want %q", res.Content, want)
	}
	if res.Metadata.TotalDuration != 7 || res.Metadata.ClinicianTurns != 1 || res.Metadata.PatientTurns != 1 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestRenderFormatFollowsRoleCount(t *testing.T) {
	testCases := []struct {
		name  string
		turns []types.CleanedTurn
		want  types.NarrativeFormat
	}{
		{"empty", nil, types.FormatSingleBlock},
		{"one speaker many turns", []types.CleanedTurn{
			ct("a", types.RolePatient, 0, 1, "un"),
			ct("a", types.RolePatient, 2, 3, "deux"),
		}, types.FormatSingleBlock},
		{"two speakers same role", []types.CleanedTurn{
			ct("a", types.RoleClinician, 0, 1, "un"),
			ct("b", types.RoleClinician, 2, 3, "deux"),
		}, types.FormatSingleBlock},
		{"two roles", []types.CleanedTurn{
			ct("a", types.RoleClinician, 0, 1, "un"),
			ct("b", types.RolePatient, 2, 3, "deux"),
		}, types.FormatRolePrefixed},
		{"unmapped speakers", []types.CleanedTurn{
			ct("a", "", 0, 1, "un"),
			ct("b", "", 2, 3, "deux"),
		}, types.FormatRolePrefixed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Render(cleaned(tc.turns...))
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if res.Format != tc.want {
				t.Errorf("format = %s, want %s", res.Format, tc.want)
			}
		})
	}
}

func TestRenderSharedRoleIsSingleBlock(t *testing.T) {
	res, err := Render(cleaned(
		ct("spk_0", types.RolePatient, 0, 1, "j'ai mal"),
		ct("spk_1", types.RolePatient, 2, 3, "moi aussi"),
	))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Format != types.FormatSingleBlock {
		t.Errorf("format = %s", res.Format)
	}
	if res.Content != "J'ai mal.\nMoi aussi." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metadata.TotalSpeakers != 2 || res.Metadata.PatientTurns != 2 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestRenderSkipsEmptyTurns(t *testing.T) {
	res, err := Render(cleaned(
		ct("a", types.RolePatient, 0, 1, "oui"),
		ct("b", types.RoleClinician, 1, 2, ""),
	))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Content != "PATIENT: Oui." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Metadata.TotalSpeakers != 2 {
		t.Errorf("total speakers = %d", res.Metadata.TotalSpeakers)
	}
}

func TestRenderWrapsLongLines(t *testing.T) {
	text := strings.Repeat("douleur lombaire persistante ", 10)
	res, err := Render(cleaned(
		ct("a", types.RolePatient, 0, 30, text),
		ct("b", types.RoleClinician, 30, 31, "d'accord"),
	))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(res.Content, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected wrapped output, got %q", res.Content)
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) > LineWidth {
			t.Errorf("line exceeds %d runes: %q", LineWidth, l)
		}
	}
	if !strings.HasPrefix(lines[0], "PATIENT: Douleur") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestWrapKeepsLongWordWhole(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := Wrap("a "+long+" b", 10)
	want := []string{"a", long, "b"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrap = %q", got)
	}
}

func TestFormatText(t *testing.T) {
	testCases := []struct{ in, want string }{
		{"ça va", "Ça va."},
		{"  Déjà fini!  ", "Déjà fini!"},
		{"« oui »", "« Oui »."},
		{"pourquoi?", "Pourquoi?"},
		{"bonjour docteur,", "Bonjour docteur."},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := FormatText(tc.in); got != tc.want {
			t.Errorf("FormatText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderNil(t *testing.T) {
	if _, err := Render(nil); !errors.Is(err, ErrNilDialog) {
		t.Fatalf("expected ErrNilDialog, got %v", err)
	}
}
