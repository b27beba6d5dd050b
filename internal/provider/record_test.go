package provider_test

import (
	"encoding/json"
	"testing"

	"github.com/medleyhq/medley/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_RawTitle_ReleaseYear(t *testing.T) {
	tests := []struct {
		summary  string
		year     string
		expected *int
	}{
		{"plain year", "2019", intPtr(2019)},
		{"whitespace", " 2019 ", intPtr(2019)},
		{"empty", "", nil},
		{"garbage", "unknown", nil},
		{"zero", "0", nil},
		{"negative", "-3", nil},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			raw := provider.RawTitle{Year: provider.Number(test.year)}
			assert.Equal(t, test.expected, raw.ReleaseYear())
		})
	}
}

func Test_RawTitle_RawPlaySources_ZipsLabelsWithChunks(t *testing.T) {
	raw := provider.RawTitle{
		PlayFrom: "m3u8$$$mp4",
		PlayURL:  "第1集$https://a.com/1.m3u8$$$第1集$https://a.com/1.mp4",
	}

	sources := raw.RawPlaySources()
	require.Len(t, sources, 2)
	assert.Equal(t, "第1集$https://a.com/1.m3u8", sources["m3u8"])
	assert.Equal(t, "第1集$https://a.com/1.mp4", sources["mp4"])
}

func Test_RawTitle_RawPlaySources_ToleratesArityMismatch(t *testing.T) {
	raw := provider.RawTitle{
		PlayFrom: "m3u8$$$mp4$$$extra",
		PlayURL:  "a$https://a.com/1$$$b$https://a.com/2",
	}

	sources := raw.RawPlaySources()
	assert.Len(t, sources, 2)
	assert.NotContains(t, sources, "extra")
}

func Test_RawTitle_RawPlaySources_Empty(t *testing.T) {
	assert.Empty(t, (&provider.RawTitle{}).RawPlaySources())
	assert.Empty(t, (&provider.RawTitle{PlayFrom: "m3u8"}).RawPlaySources())
}

// The station response envelope is permissive: stations report page numbers
// as either strings or integers, and omitted fields must not fail decoding.
func Test_ListResponse_DecodesLooselyTypedEnvelope(t *testing.T) {
	payload := `{"code":1,"msg":"ok","page":"2","pagecount":17,"total":"340","list":[{"vod_id":9,"vod_name":"Example","vod_year":2021}]}`

	var response provider.ListResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &response))

	pageCount, err := response.PageCount.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 17, pageCount)
	require.Len(t, response.List, 1)
	assert.Equal(t, "Example", response.List[0].Name)
	assert.Equal(t, intPtr(2021), response.List[0].ReleaseYear())
}

func Test_ListResponse_ToleratesEmptyAndNullScalars(t *testing.T) {
	payload := `{"code":1,"page":null,"pagecount":"","list":[{"vod_id":"","vod_name":"No Year","vod_year":""}]}`

	var response provider.ListResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &response))

	_, err := response.PageCount.Int64()
	assert.Error(t, err)
	require.Len(t, response.List, 1)
	assert.Nil(t, response.List[0].ReleaseYear())
}

func intPtr(v int) *int { return &v }
