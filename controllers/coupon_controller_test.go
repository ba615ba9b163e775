package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketshop/controllers"
	"ticketshop/models"
	"ticketshop/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCouponService returns canned responses per method.
type stubCouponService struct {
	coupon    *models.Coupon
	coupons   []models.Coupon
	total     int64
	quote     *services.PriceQuote
	err       *services.ServiceError
	lastPage  int
	lastLimit int
}

func (s *stubCouponService) CreateCoupon(_ context.Context, req *models.CreateCouponRequest) (*models.Coupon, *services.ServiceError) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Coupon{
		ID:      uuid.New(),
		Code:    models.NormalizeCouponCode(req.Code),
		Kind:    req.Kind,
		Value:   req.Value,
		MaxUses: req.MaxUses,
		Active:  true,
	}, nil
}

func (s *stubCouponService) GetCoupon(context.Context, string) (*models.Coupon, *services.ServiceError) {
	return s.coupon, s.err
}

func (s *stubCouponService) RemoveCoupon(context.Context, string) *services.ServiceError {
	return s.err
}

func (s *stubCouponService) ListCoupons(_ context.Context, page, limit int) ([]models.Coupon, int64, *services.ServiceError) {
	s.lastPage = page
	s.lastLimit = limit
	return s.coupons, s.total, s.err
}

func (s *stubCouponService) PreviewDiscount(context.Context, *models.PreviewDiscountRequest) (*services.PriceQuote, *services.ServiceError) {
	return s.quote, s.err
}

var _ services.CouponService = (*stubCouponService)(nil)

func newCouponRouter(svc services.CouponService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cc := controllers.NewCouponController(svc)
	router := gin.New()
	router.POST("/coupons", cc.CreateCoupon)
	router.GET("/coupons", cc.ListCoupons)
	router.GET("/coupons/:code", cc.GetCoupon)
	router.DELETE("/coupons/:code", cc.RemoveCoupon)
	router.POST("/coupons/preview", cc.PreviewDiscount)
	return router
}

func TestCreateCouponEndpoint(t *testing.T) {
	router := newCouponRouter(&stubCouponService{})

	body, _ := json.Marshal(models.CreateCouponRequest{
		Code: "save10", Kind: models.CouponKindPercent, Value: 10, MaxUses: 100,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Coupon models.Coupon `json:"coupon"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SAVE10", resp.Coupon.Code)
	assert.True(t, resp.Coupon.Active)
}

func TestCreateCouponEndpoint_MissingFields(t *testing.T) {
	router := newCouponRouter(&stubCouponService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBufferString(`{"code":"SAVE10"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCouponEndpoint_ServiceError(t *testing.T) {
	router := newCouponRouter(&stubCouponService{
		err: &services.ServiceError{StatusCode: 409, Message: "Coupon code already exists"},
	})

	body, _ := json.Marshal(models.CreateCouponRequest{
		Code: "SAVE10", Kind: models.CouponKindPercent, Value: 10,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/coupons", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetCouponEndpoint_NotFound(t *testing.T) {
	router := newCouponRouter(&stubCouponService{
		err: &services.ServiceError{StatusCode: 404, Message: "Coupon not found"},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coupons/GHOST", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveCouponEndpoint(t *testing.T) {
	router := newCouponRouter(&stubCouponService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/coupons/SAVE10", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListCouponsEndpoint_Pagination(t *testing.T) {
	svc := &stubCouponService{
		coupons: []models.Coupon{{Code: "A1"}, {Code: "B2"}},
		total:   25,
	}
	router := newCouponRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coupons?page=2&limit=10", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.lastPage)
	assert.Equal(t, 10, svc.lastLimit)

	var resp struct {
		Meta struct {
			Page       int   `json:"page"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasMore    bool  `json:"has_more"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(25), resp.Meta.Total)
	assert.Equal(t, int64(3), resp.Meta.TotalPages)
	assert.True(t, resp.Meta.HasMore)
}

func TestListCouponsEndpoint_LimitCapped(t *testing.T) {
	svc := &stubCouponService{}
	router := newCouponRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coupons?limit=5000", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, svc.lastLimit)
}

func TestPreviewDiscountEndpoint(t *testing.T) {
	router := newCouponRouter(&stubCouponService{
		quote: &services.PriceQuote{Total: 90, Discount: 10, Label: "SAVE10 (10% off)"},
	})

	body, _ := json.Marshal(models.PreviewDiscountRequest{Code: "SAVE10", Amount: 100})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/coupons/preview", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var quote services.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, 90.0, quote.Total)
	assert.Equal(t, 10.0, quote.Discount)
}
