package decode

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_ByMediaType(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        any
	}{
		{
			name:        "json with charset",
			body:        `{"statusCode":200,"data":{"id":"abc"}}`,
			contentType: "application/json; charset=utf-8",
			want:        map[string]any{"statusCode": float64(200), "data": map[string]any{"id": "abc"}},
		},
		{
			name:        "plain text",
			body:        "hello",
			contentType: "text/plain",
			want:        map[string]any{"result": "hello"},
		},
		{
			name:        "html heading",
			body:        `<html><body><h3 align="center">Test cancelled.</h3></body></html>`,
			contentType: "text/html",
			want:        map[string]any{"result": "Test cancelled."},
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/json",
			want:        map[string]any{},
		},
		{
			name:        "unknown type passes through",
			body:        "raw",
			contentType: "application/octet-stream",
			want:        "raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Dispatch([]byte(tt.body), tt.contentType, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatch_ExplicitDecoderWins(t *testing.T) {
	got, err := Dispatch([]byte("a,b\n1,2\n"), "application/json", CSV)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{float64(1)}, "b": []any{float64(2)}}, got)
}

func TestDispatch_PreservesParserError(t *testing.T) {
	_, err := Dispatch([]byte("{not json"), "application/json", nil)
	require.Error(t, err)

	var decErr *Error
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "application/json", decErr.ContentType)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"200", float64(200)},
		{"-1", float64(-1)},
		{"+5", float64(5)},
		{"1.5", float64(1.5)},
		{".5", float64(0.5)},
		{"1.2.3", "1.2.3"},
		{"10.0.0.1", "10.0.0.1"},
		{"abc", "abc"},
		{"", ""},
		{".", "."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.in))
		})
	}
}

func TestXML(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<response>
  <statusCode>200</statusCode>
  <statusText>Ok</statusText>
  <data>
    <location id="Dulles">
      <Label>Dulles, VA</Label>
    </location>
    <location id="NYC">
      <Label>New York</Label>
    </location>
    <location id="SF">
      <Label>San Francisco</Label>
    </location>
    <version>2.1.0</version>
  </data>
</response>`

	got, err := XML([]byte(body))
	require.NoError(t, err)

	response := got.(map[string]any)["response"].(map[string]any)
	assert.Equal(t, float64(200), response["statusCode"])
	assert.Equal(t, "Ok", response["statusText"])

	data := response["data"].(map[string]any)
	locations, ok := data["location"].([]any)
	require.True(t, ok, "repeated siblings become an array")
	require.Len(t, locations, 3)
	assert.Equal(t, map[string]any{"id": "Dulles", "Label": "Dulles, VA"}, locations[0])
	assert.Equal(t, "2.1.0", data["version"])
}

func TestXML_Latin1(t *testing.T) {
	body := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><r><name>caf\xe9</name></r>"
	got, err := XML([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "café", got.(map[string]any)["r"].(map[string]any)["name"])
}

func TestCSV(t *testing.T) {
	body := "Offset Time (ms),Bandwidth In (bps),CPU Utilization (%)\r\n100,0,25\r\n200,1024,33.5\r\n"

	got, err := CSV([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Offset Time (ms)":    []any{float64(100), float64(200)},
		"Bandwidth In (bps)":  []any{float64(0), float64(1024)},
		"CPU Utilization (%)": []any{float64(25), 33.5},
	}, got)
}

func TestTSV_SkipsHeaderBlockAndBlankColumns(t *testing.T) {
	headers := []string{"", "", "", "ip_addr", "method"}
	body := "Date\tTime\tEvent\tIP Address\tAction\n" +
		"x\tx\tx\tx\tx\n" +
		"d\tt\te\t10.0.0.1\tGET\n"

	got, err := TSV(headers)([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"ip_addr": []any{"10.0.0.1"},
		"method":  []any{"GET"},
	}, got)
}

func TestTSV_RoundTrip(t *testing.T) {
	headers := []string{"host", "load_ms"}
	got, err := TSV(headers)([]byte("a.com\t10\nb.com\t20"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"host":    []any{"a.com", "b.com"},
		"load_ms": []any{float64(10), float64(20)},
	}, got)
}

func TestNetLog_RepairsTruncatedTail(t *testing.T) {
	got, err := NetLog([]byte("{\"events\":[{\"a\":1},\r\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"events": []any{map[string]any{"a": float64(1)}}}, got)

	got, err = NetLog(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)
}

func TestDataURI(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	got, err := DataURI(raw)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(got.(string))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
