package views

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/model"
)

func TestMatchAll(t *testing.T) {
	assert.True(t, matchAll("", "anything"))
	assert.True(t, matchAll("ile france", "Île-de-France"))
	assert.True(t, matchAll("PARIS fr", "Paris, France"))
	assert.False(t, matchAll("paris lyon", "Paris, France"))
	assert.True(t, matchAll("cafe lyon", "Café des Arts", "Lyon"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "é…", truncate("ééé", 2))
	assert.Equal(t, "", truncate("abc", 0))
}

func setupWith(values map[int]string) SetupModel {
	m := NewSetupModel(model.SearchParams{
		GridSize:          3,
		BlockSizeKM:       70,
		MinRadiusMeters:   100,
		RequestsPerSecond: 2,
		DensePages:        3,
	})
	for i, v := range values {
		m.inputs[i].SetValue(v)
	}
	return m
}

func TestSetupParams(t *testing.T) {
	m := setupWith(map[int]string{
		fieldKeyword: "  infirmier  ",
		fieldZone:    "Lyon",
		fieldLat:     "45.5",
		fieldLng:     "4.5",
		fieldOutput:  "out.csv",
	})

	p, err := m.params()
	require.NoError(t, err)
	assert.Equal(t, "infirmier", p.Keyword)
	assert.Equal(t, "Lyon", p.Zone)
	assert.Equal(t, 45.5, p.CenterLat)
	assert.Equal(t, 4.5, p.CenterLng)
	assert.Equal(t, 3, p.GridSize)
	assert.Equal(t, 70.0, p.BlockSizeKM)
	assert.Equal(t, 3, p.DensePages)
	assert.Equal(t, "out.csv", p.OutputPath)
}

func TestSetupParams_Invalid(t *testing.T) {
	cases := map[string]map[int]string{
		"missing keyword": {},
		"latitude range":  {fieldKeyword: "k", fieldLat: "95", fieldLng: "2"},
		"polar latitude":  {fieldKeyword: "k", fieldLat: "88", fieldLng: "2"},
		"lng without lat": {fieldKeyword: "k", fieldLng: "2"},
		"zero grid":       {fieldKeyword: "k", fieldGrid: "0"},
		"negative block":  {fieldKeyword: "k", fieldBlock: "-1"},
		"text radius":     {fieldKeyword: "k", fieldMinRadius: "far"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			m := setupWith(values)
			_, err := m.params()
			assert.Error(t, err)
		})
	}
}

func TestSetupZoneSuggestions(t *testing.T) {
	m := setupWith(nil)
	m.focusTo(fieldZone)
	m.inputs[fieldZone].SetValue("tok")
	m.updateSuggestions()

	require.NotEmpty(t, m.suggestions)
	assert.Equal(t, "Tokyo, Japan", m.suggestions[0].Name)

	m.selectSuggestion()
	assert.Equal(t, "Tokyo, Japan", m.inputs[fieldZone].Value())
	assert.Empty(t, m.suggestions)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "1.5 MiB", humanSize(3*512*1024))
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "zeta"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpha"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hidden"), 0o755))
	for _, name := range []string{"old.db", "new.sqlite", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.db"), past, past))

	items, err := listDir(dir)
	require.NoError(t, err)

	var names []string
	for _, it := range items {
		names = append(names, it.name)
	}
	assert.Equal(t, []string{"alpha", "zeta", "new.sqlite", "old.db"}, names)
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "never", timeAgo(time.Time{}))
	assert.Equal(t, "just now", timeAgo(time.Now()))
	assert.Equal(t, "5m ago", timeAgo(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "2d ago", timeAgo(time.Now().Add(-49*time.Hour)))
}

func TestDescribeBatch(t *testing.T) {
	s := model.Sector{ID: model.SectorID(1)}
	r := scraper.BatchReport{
		Processed: []model.ProcessedSector{
			model.NewProcessed(s, model.ActionSplit, 20, time.Now()),
		},
		Failures: []scraper.Failure{{Sector: model.Sector{ID: model.SectorID(2)}, Err: errors.New("boom")}},
	}
	assert.Equal(t, "Split S-000001 (20+) • 1 failed", describeBatch(r))
}

func TestBuildCardLines(t *testing.T) {
	p, err := model.ParsePlace([]byte(`{
		"place_id": "abc",
		"name": "Cabinet Dupont",
		"rating": 4.5,
		"user_ratings_total": 12,
		"types": ["health", "point_of_interest"],
		"vicinity": "1 rue de Rivoli",
		"geometry": {"location": {"lat": 48.85, "lng": 2.35}},
		"source_sector_id": "S-000003"
	}`))
	require.NoError(t, err)

	lines := buildCardLines(p)
	assert.Equal(t, "Cabinet Dupont", lines[0])
	assert.Equal(t, "4.5 (12 reviews)", lines[1])
	assert.Equal(t, "health, point_of_interest", lines[2])
	assert.Contains(t, lines, "Address:   1 rue de Rivoli")
	assert.Contains(t, lines, "PlaceID:   abc")
	assert.Contains(t, lines, "Sector:    S-000003")
}

func TestWindow(t *testing.T) {
	start, end := window(10, 8, 4)
	assert.Equal(t, 6, start)
	assert.Equal(t, 10, end)

	start, end = window(3, 2, 5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
}

func TestHomeHotkeys(t *testing.T) {
	m := NewHomeModel("dev", nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.NotNil(t, cmd)
	assert.Equal(t, NavigateToSetup{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHomeShowsDisabledReason(t *testing.T) {
	m := NewHomeModel("dev", errors.New("missing credential"))
	assert.Contains(t, m.View(), "missing credential")
}
