package inputlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textreplay/internal/event"
	"textreplay/internal/replay"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatAuto, true},
		{"auto", FormatAuto, true},
		{"XML", FormatXML, true},
		{" json ", FormatJSON, true},
		{"csv", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("logs/Session.XML")
	require.NoError(t, err)
	assert.Equal(t, FormatXML, f)

	f, err = DetectFormat("session.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = DetectFormat("session.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestReadXMLChildElements(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "session.xml"))
	require.NoError(t, err)
	defer f.Close()

	recs, err := ReadXML(f)
	require.NoError(t, err)
	require.Len(t, recs, 6)

	assert.Equal(t, event.Record{
		"id":             "1",
		"type":           "keyboard",
		"output":         "h",
		"position":       "0",
		"positionFull":   "0",
		"doclength":      "1",
		"doclengthFull":  "1",
		"charProduction": "1",
	}, recs[1])
	assert.Equal(t, "SPACE", recs[3]["output"], "reader does not normalize")
}

func TestReadXMLAttributes(t *testing.T) {
	doc := `<session>
  <event id="7" type="replacement">
    <output>[1:3]bc</output>
    <positionFull>1</positionFull>
    <doclengthFull>4</doclengthFull>
    <charProduction>4</charProduction>
    <RawStart/>
  </event>
</session>`

	recs, err := ReadXML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "7", recs[0]["id"])
	assert.Equal(t, "replacement", recs[0]["type"])
	assert.Equal(t, "[1:3]bc", recs[0]["output"])
	v, ok := recs[0]["RawStart"]
	assert.True(t, ok)
	assert.Equal(t, "", v, "empty element is an empty value")
}

func TestReadXMLChildOverridesAttribute(t *testing.T) {
	doc := `<session><event type="mouse"><type>keyboard</type></event></session>`
	recs, err := ReadXML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "keyboard", recs[0]["type"])
}

func TestReadXMLMalformed(t *testing.T) {
	_, err := ReadXML(strings.NewReader(`<session><event><id>1</id></session>`))
	assert.Error(t, err)
}

func TestReadXMLNoEvents(t *testing.T) {
	recs, err := ReadXML(strings.NewReader(`<session></session>`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadJSONSession(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "session.json"))
	require.NoError(t, err)
	defer f.Close()

	recs, err := ReadJSON(f, true)
	require.NoError(t, err)
	require.Len(t, recs, 6)
	assert.Equal(t, "0", recs[1]["position"])
	assert.Equal(t, "3", recs[5]["doclengthFull"], "integral floats lose their fraction")
}

func TestReadJSONArrayWithAttributeKeys(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "events.json"))
	require.NoError(t, err)
	defer f.Close()

	recs, err := ReadJSON(f, true)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "keyboard", recs[1]["type"])
	assert.Equal(t, "1", recs[1]["id"])
	_, ok := recs[1]["RawStart"]
	assert.False(t, ok, "null fields are absent")
}

func TestReadJSONSingleEventSession(t *testing.T) {
	doc := `{"session":{"event":{"id":"0","type":"focus","positionFull":"0","doclengthFull":"0","charProduction":"0"}}}`
	recs, err := ReadJSON(strings.NewReader(doc), true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "focus", recs[0]["type"])
}

func TestReadJSONSchemaViolation(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "invalid.json"))
	require.NoError(t, err)
	defer f.Close()

	_, err = ReadJSON(f, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestReadJSONWithoutValidation(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"session":{"event":[{"id":{"value":0}}]}}`), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema, "conversion still rejects nested values")

	_, err = ReadJSON(strings.NewReader(`{"log":[]}`), false)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestReadJSONSyntaxError(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`[{"id": `), true)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSchema))
}

func TestSchemaCompiles(t *testing.T) {
	s1, err := Schema()
	require.NoError(t, err)
	s2, err := Schema()
	require.NoError(t, err)
	assert.Same(t, s1, s2, "schema is compiled once")
}

func TestReadFileFormatsAgree(t *testing.T) {
	fromXML, err := ReadFile(filepath.Join("testdata", "session.xml"), DefaultOptions())
	require.NoError(t, err)
	fromJSON, err := ReadFile(filepath.Join("testdata", "session.json"), DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, fromXML.Len(), fromJSON.Len())
	for i, e := range fromXML.All() {
		assert.Equal(t, *e, *fromJSON.At(i), "event %d", i)
	}
	assert.Equal(t, " ", fromXML.At(3).Output, "SPACE normalized")
}

func TestReadFileReplays(t *testing.T) {
	log, err := ReadFile(filepath.Join("testdata", "session.xml"), DefaultOptions())
	require.NoError(t, err)

	res, err := replay.New(replay.DefaultOptions()).Final(log, "")
	require.NoError(t, err)
	assert.Equal(t, "hi!", res.Text)
}

func TestReadFileForcedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	data, err := os.ReadFile(filepath.Join("testdata", "session.xml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = ReadFile(path, DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownFormat)

	log, err := ReadFile(path, Options{Format: FormatXML})
	require.NoError(t, err)
	assert.Equal(t, 6, log.Len())
}

func TestReadFileMalformedEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xml")
	doc := `<session><event><id>x</id><type>keyboard</type></event></session>`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	_, err := ReadFile(path, DefaultOptions())
	var me *event.MalformedEventError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 0, me.Index)
	assert.Equal(t, event.FieldID, me.Field)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.xml"), DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSeed(t *testing.T) {
	seed, err := ReadSeed("")
	require.NoError(t, err)
	assert.Equal(t, "", seed)

	seed, err = ReadSeed(filepath.Join("testdata", "seed_bom.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", seed)

	_, err = ReadSeed(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
