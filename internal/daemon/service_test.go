package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestPageRequest_RoundTrip(t *testing.T) {
	in, err := PageRequest{Query: "foo bar", PageNum: 4, PageSize: 25}.Encode()
	require.NoError(t, err)

	got, err := DecodePageRequest(in)
	require.NoError(t, err)
	assert.Equal(t, PageRequest{Query: "foo bar", PageNum: 4, PageSize: 25}, got)
}

func TestDecodePageRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing page_num", map[string]any{"page_size": 10}},
		{"missing page_size", map[string]any{"page_num": 1}},
		{"zero page", map[string]any{"page_num": 0, "page_size": 10}},
		{"negative size", map[string]any{"page_num": 1, "page_size": -3}},
		{"fractional page", map[string]any{"page_num": 1.5, "page_size": 10}},
		{"string page", map[string]any{"page_num": "1", "page_size": 10}},
		{"numeric query", map[string]any{"query": 7, "page_num": 1, "page_size": 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)

			_, err = DecodePageRequest(in)
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestPageResponse_RoundTrip(t *testing.T) {
	want := PageResponse{
		Items: []PageItem{{ID: "a", Text: "first"}, {ID: "b", Text: "second"}},
		Total: 42,
	}
	out, err := want.Encode()
	require.NoError(t, err)

	got, err := DecodePageResponse(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodePageResponse_Malformed(t *testing.T) {
	noTotal, err := structpb.NewStruct(map[string]any{"items": []any{}})
	require.NoError(t, err)
	_, err = DecodePageResponse(noTotal)
	assert.Error(t, err)

	badItem, err := structpb.NewStruct(map[string]any{"items": []any{"x"}, "total": 1})
	require.NoError(t, err)
	_, err = DecodePageResponse(badItem)
	assert.Error(t, err)
}
