package rfq_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cargomesh/freightbid/internal/config"
	"github.com/cargomesh/freightbid/internal/entity"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/internal/service/bidding/biddingtest"
	transportrfq "github.com/cargomesh/freightbid/internal/transport/http/rfq"
)

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(t *testing.T) (*echo.Echo, *bidding.Service) {
	t.Helper()
	backend := biddingtest.NewBackend()
	svc := bidding.NewService(backend, backend, nil, config.Config{}, zap.NewNop(), nil)

	e := echo.New()
	transportrfq.Register(e, transportrfq.NewHandler(svc))
	return e, svc
}

func doRequest(e *echo.Echo, method, path string, p bidding.Principal, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Account-Id", p.ID.String())
	req.Header.Set("X-Account-Role", string(p.Role))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	return body
}

func org() bidding.Principal {
	return bidding.Principal{ID: uuid.New(), Role: entity.RoleOrg}
}

func vendor() bidding.Principal {
	return bidding.Principal{ID: uuid.New(), Role: entity.RoleVendor}
}

func createRFQ(t *testing.T, e *echo.Echo, p bidding.Principal) uuid.UUID {
	t.Helper()
	rec := doRequest(e, http.MethodPost, "/rfqs", p, `{"origin":"Rotterdam","destination":"Singapore"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data.ID
}

func TestCreateAndGet(t *testing.T) {
	e, _ := newServer(t)
	owner := org()
	id := createRFQ(t, e, owner)

	rec := doRequest(e, http.MethodGet, "/rfqs/"+id.String(), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status entity.RFQStatus `json:"status"`
			OrgID  uuid.UUID        `json:"org_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, entity.RFQDraft, body.Data.Status)
	require.Equal(t, owner.ID, body.Data.OrgID)
}

func TestCreateForbiddenForVendor(t *testing.T) {
	e, _ := newServer(t)

	rec := doRequest(e, http.MethodPost, "/rfqs", vendor(), `{"origin":"A","destination":"B"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, bidding.CodeForbidden, decodeError(t, rec).Error.Code)
}

func TestMissingIdentityHeaders(t *testing.T) {
	e, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/rfqs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvalidRoleHeader(t *testing.T) {
	e, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/rfqs", nil)
	req.Header.Set("X-Account-Id", uuid.NewString())
	req.Header.Set("X-Account-Role", "SUPERUSER")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	e, _ := newServer(t)
	owner := org()
	id := createRFQ(t, e, owner)

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/publish", id), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Publishing twice conflicts.
	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/publish", id), owner, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, bidding.CodeInvalidTransition, decodeError(t, rec).Error.Code)

	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/unpublish", id), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/publish", id), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/close", id), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Status entity.RFQStatus `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, entity.RFQClosed, body.Data.Status)
}

func TestTransitionOnForeignRFQReadsAsMissing(t *testing.T) {
	e, _ := newServer(t)
	id := createRFQ(t, e, org())

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/publish", id), org(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, bidding.CodeNotFound, decodeError(t, rec).Error.Code)
}

func TestTransitionInvalidID(t *testing.T) {
	e, _ := newServer(t)

	rec := doRequest(e, http.MethodPost, "/rfqs/not-a-uuid/publish", org(), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAward(t *testing.T) {
	e, svc := newServer(t)
	owner := org()
	bidder := vendor()
	id := createRFQ(t, e, owner)

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/publish", id), owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	bid, err := svc.SubmitBid(context.Background(), bidder, id, decimal.NewFromInt(500), 7)
	require.NoError(t, err)

	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/award", id), owner, fmt.Sprintf(`{"bid_id":%q}`, bid.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			RFQ struct {
				Status entity.RFQStatus `json:"status"`
			} `json:"rfq"`
			Bid struct {
				ID       uuid.UUID `json:"id"`
				IsWinner bool      `json:"is_winner"`
			} `json:"bid"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, entity.RFQClosed, body.Data.RFQ.Status)
	require.Equal(t, bid.ID, body.Data.Bid.ID)
	require.True(t, body.Data.Bid.IsWinner)

	// Awarding again conflicts.
	rec = doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/award", id), owner, fmt.Sprintf(`{"bid_id":%q}`, bid.ID))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, bidding.CodeAlreadyDecided, decodeError(t, rec).Error.Code)
}

func TestAwardRequiresBidID(t *testing.T) {
	e, _ := newServer(t)
	owner := org()
	id := createRFQ(t, e, owner)

	rec := doRequest(e, http.MethodPost, fmt.Sprintf("/rfqs/%s/award", id), owner, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListScopedByRole(t *testing.T) {
	e, _ := newServer(t)
	owner := org()
	id := createRFQ(t, e, owner)
	createRFQ(t, e, org())

	rec := doRequest(e, http.MethodGet, "/rfqs", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, id, body.Data[0].ID)

	// Drafts are invisible to vendors.
	rec = doRequest(e, http.MethodGet, "/rfqs", vendor(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body.Data = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Data)
}
