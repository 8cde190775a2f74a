package rest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/internal/apierrors"
)

func TestResponseErr(t *testing.T) {
	tests := []struct {
		name     string
		resp     *Response
		wantKind apierrors.Kind
	}{
		{name: "ok", resp: &Response{StatusCode: 200}},
		{name: "canned ok", resp: OK()},
		{
			name:     "array error code",
			resp:     &Response{StatusCode: 409, ErrorCode: apierrors.CodeStorageResourceNameInUse, Messages: []string{"name in use"}},
			wantKind: apierrors.KindStorageResourceNameInUse,
		},
		{
			name:     "bare 404",
			resp:     &Response{StatusCode: 404},
			wantKind: apierrors.KindNotFound,
		},
		{
			name:     "unknown code",
			resp:     &Response{StatusCode: 422, ErrorCode: 1},
			wantKind: apierrors.KindGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Err()
			if tt.wantKind == "" {
				assert.NoError(t, err)
				assert.True(t, tt.resp.IsOK())
				return
			}
			require.Error(t, err)
			assert.False(t, tt.resp.IsOK())
			assert.Equal(t, tt.wantKind, apierrors.KindOf(err))
		})
	}
}

func TestResponseContents(t *testing.T) {
	resp := &Response{Contents: []map[string]any{
		{"id": "res_19", "backup": map[string]any{"id": "85899345930"}},
	}}
	assert.Equal(t, "res_19", resp.ResourceID())
	assert.Equal(t, "85899345930", resp.FirstContent()["backup"].(map[string]any)["id"])

	created := &Response{Contents: []map[string]any{{"storageResource": map[string]any{"id": "sv_5"}}}}
	assert.Equal(t, "sv_5", created.ResourceID())

	assert.Nil(t, (&Response{}).FirstContent())
	assert.Equal(t, "", (&Response{}).ResourceID())
}

func TestCheck(t *testing.T) {
	transport := errors.New("connection refused")
	_, err := Check(nil, transport)
	assert.ErrorIs(t, err, transport)

	_, err = Check(&Response{StatusCode: 404, ErrorCode: apierrors.CodeNotFound}, nil)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	resp, err := Check(OK(), nil)
	assert.NoError(t, err)
	assert.True(t, resp.IsOK())
}
