package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-onchain/chainerr"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   chainerr.Kind
	}{
		{chainerr.Validationf("bad"), http.StatusBadRequest, chainerr.KindValidation},
		{chainerr.NotFound("gone"), http.StatusNotFound, chainerr.KindNotFound},
		{errors.New("execution reverted: nope"), http.StatusUnprocessableEntity, chainerr.KindReverted},
		{errors.New("something odd"), http.StatusInternalServerError, chainerr.KindUnknown},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(w, tt.err)
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body ErrorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.kind, body.Kind)
		assert.Equal(t, tt.err.Error(), body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Quantity int64 `json:"quantity"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":3}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &v))
	assert.Equal(t, int64(3), v.Quantity)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":"three"}`))
	err := DecodeJSON(httptest.NewRecorder(), r, &v)
	assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))
}

func TestPathParams(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{
		"tokenId": "42",
		"address": "0x00000000000000000000000000000000000000a1",
	})
	id, err := TokenID(r)
	require.NoError(t, err)
	assert.Equal(t, "42", id.String())

	addr, err := Address(r)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xa1"), addr)

	_, err = ParseTokenID("-3")
	assert.EqualError(t, err, `Invalid token ID "-3"`)

	bad := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"address": "0x12"})
	_, err = Address(bad)
	assert.Equal(t, chainerr.KindValidation, chainerr.KindOf(err))
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=7&bad=x", nil)
	n, err := QueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = QueryInt(r, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)

	_, err = QueryInt(r, "bad", 0)
	assert.EqualError(t, err, `Invalid bad "x"`)
}
