package errors_test

import (
	"encoding/json"
	"net/http"
	"testing"

	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_JSON(t *testing.T) {
	body, err := json.Marshal(apierrors.BadRequest("Missing siteId"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Missing siteId"}`, string(body))

	body, err = json.Marshal(apierrors.Internal("Failed").WithDetails("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Failed","details":"boom"}`, string(body))
}

func TestUpstream_Status(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, apierrors.Upstream("x", 404, "").Status)
	assert.Equal(t, http.StatusInternalServerError, apierrors.Upstream("x", 502, "").Status)
	assert.Equal(t, http.StatusInternalServerError, apierrors.Upstream("x", 0, "").Status)
}

func TestWithDetails_DoesNotMutate(t *testing.T) {
	base := apierrors.Unauthorized()
	_ = base.WithDetails("expired")
	assert.Empty(t, base.Details)
	assert.Equal(t, "401 Unauthorized", base.Error())
}
