package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	fulfillmentapp "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pieceHandlerFixture struct {
	pieces *MockPieceRepository
	lines  *MockOrderLineRepository
	router *gin.Engine

	tenantID uuid.UUID
	orderID  uuid.UUID
	line     *fulfillment.OrderLine
}

func newPieceHandlerFixture(t *testing.T, quantity int) *pieceHandlerFixture {
	t.Helper()
	f := &pieceHandlerFixture{
		pieces:   new(MockPieceRepository),
		lines:    new(MockOrderLineRepository),
		tenantID: uuid.New(),
		orderID:  uuid.New(),
	}

	line, err := fulfillment.NewOrderLine(f.tenantID, f.orderID, "Duvet dry clean", "DUVET-DC", quantity, decimal.NewFromInt(20))
	require.NoError(t, err)
	f.line = line

	service := fulfillmentapp.NewPieceService(f.pieces, f.lines, zap.NewNop())
	handler := NewPieceHandler(service)

	f.router = gin.New()
	f.router.POST("/orders/:orderId/lines/:lineId/pieces", handler.Create)
	f.router.GET("/orders/:orderId/lines/:lineId/pieces", handler.List)
	f.router.DELETE("/orders/:orderId/pieces/:pieceId", handler.Delete)
	return f
}

func (f *pieceHandlerFixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Tenant-ID", f.tenantID.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodePieceList(t *testing.T, w *httptest.ResponseRecorder) []PieceResponse {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    []PieceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestPieceHandlerCreate(t *testing.T) {
	f := newPieceHandlerFixture(t, 3)

	f.lines.On("FindByIDForTenant", mock.Anything, f.tenantID, f.line.ID).Return(f.line, nil)
	f.pieces.On("CountByLine", mock.Anything, f.tenantID, f.line.ID).Return(int64(0), nil)
	f.pieces.On("CreateBatch", mock.Anything, mock.MatchedBy(func(pieces []fulfillment.Piece) bool {
		return len(pieces) == 3
	})).Return(nil)

	w := f.do(t, http.MethodPost, "/orders/"+f.orderID.String()+"/lines/"+f.line.ID.String()+"/pieces")

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodePieceList(t, w)
	require.Len(t, data, 3)
	for i, p := range data {
		assert.Equal(t, i+1, p.Sequence)
		assert.Equal(t, string(fulfillment.PieceStatusIntake), p.Status)
		assert.Equal(t, f.line.ID.String(), p.LineID)
	}

	f.pieces.AssertExpectations(t)
}

func TestPieceHandlerCreate_PiecesAlreadyExist(t *testing.T) {
	f := newPieceHandlerFixture(t, 2)

	f.lines.On("FindByIDForTenant", mock.Anything, f.tenantID, f.line.ID).Return(f.line, nil)
	f.pieces.On("CountByLine", mock.Anything, f.tenantID, f.line.ID).Return(int64(2), nil)

	w := f.do(t, http.MethodPost, "/orders/"+f.orderID.String()+"/lines/"+f.line.ID.String()+"/pieces")

	require.Equal(t, http.StatusConflict, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodePiecesExist, resp.Error.Code)
	f.pieces.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestPieceHandlerCreate_LineOutsideOrder(t *testing.T) {
	f := newPieceHandlerFixture(t, 2)

	f.lines.On("FindByIDForTenant", mock.Anything, f.tenantID, f.line.ID).Return(f.line, nil)

	otherOrder := uuid.New()
	w := f.do(t, http.MethodPost, "/orders/"+otherOrder.String()+"/lines/"+f.line.ID.String()+"/pieces")

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPieceHandlerList(t *testing.T) {
	f := newPieceHandlerFixture(t, 2)

	set, err := fulfillment.NewPieceSet(f.tenantID, f.orderID, f.line.ID, 2)
	require.NoError(t, err)
	set[1].Status = fulfillment.PieceStatusReady
	set[1].IsReady = true

	f.lines.On("FindByIDForTenant", mock.Anything, f.tenantID, f.line.ID).Return(f.line, nil)
	f.pieces.On("FindByLine", mock.Anything, f.tenantID, f.line.ID).Return(set, nil)

	w := f.do(t, http.MethodGet, "/orders/"+f.orderID.String()+"/lines/"+f.line.ID.String()+"/pieces")

	require.Equal(t, http.StatusOK, w.Code)
	data := decodePieceList(t, w)
	require.Len(t, data, 2)
	assert.False(t, data[0].IsReady)
	assert.True(t, data[1].IsReady)
	assert.Equal(t, string(fulfillment.PieceStatusReady), data[1].Status)
}

func TestPieceHandlerList_InvalidLineID(t *testing.T) {
	f := newPieceHandlerFixture(t, 1)

	w := f.do(t, http.MethodGet, "/orders/"+f.orderID.String()+"/lines/not-a-uuid/pieces")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.lines.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestPieceHandlerDelete(t *testing.T) {
	f := newPieceHandlerFixture(t, 2)

	set, err := fulfillment.NewPieceSet(f.tenantID, f.orderID, f.line.ID, 2)
	require.NoError(t, err)
	piece := set[0]

	f.pieces.On("FindByID", mock.Anything, f.tenantID, f.orderID, uuid.Nil, piece.ID).Return(&piece, nil)
	f.pieces.On("Delete", mock.Anything, f.tenantID, f.orderID, piece.ID).Return(nil)
	f.lines.On("SyncReadyCount", mock.Anything, f.tenantID, f.line.ID).Return(1, nil)

	w := f.do(t, http.MethodDelete, "/orders/"+f.orderID.String()+"/pieces/"+piece.ID.String())

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                `json:"success"`
		Data    DeletePieceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.ReadyCount)

	f.pieces.AssertExpectations(t)
	f.lines.AssertExpectations(t)
}

func TestPieceHandlerDelete_NotFound(t *testing.T) {
	f := newPieceHandlerFixture(t, 1)

	pieceID := uuid.New()
	f.pieces.On("FindByID", mock.Anything, f.tenantID, f.orderID, uuid.Nil, pieceID).Return(nil, shared.ErrNotFound)

	w := f.do(t, http.MethodDelete, "/orders/"+f.orderID.String()+"/pieces/"+pieceID.String())

	assert.Equal(t, http.StatusNotFound, w.Code)
	f.pieces.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPieceHandlerDelete_InvalidPieceID(t *testing.T) {
	f := newPieceHandlerFixture(t, 1)

	w := f.do(t, http.MethodDelete, "/orders/"+f.orderID.String()+"/pieces/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
