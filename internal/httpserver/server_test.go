package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/cartview"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/watch"
	"github.com/Skotchmaster/storefront/internal/worker"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-jwt-secret")

type testServer struct {
	E  *echo.Echo
	DB *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)

	cartPool := worker.NewPool("cart", 2, 32, nil)
	checkoutPool := worker.NewPool("checkout", 2, 32, nil)
	t.Cleanup(func() {
		_ = checkoutPool.Close()
		_ = cartPool.Close()
	})

	view := cartview.New(r, watch.NewHub[uuid.UUID](), nil)
	cart := &service.CartService{Store: r, Pool: cartPool, View: view, Notifier: view, Events: mykafka.Nop{}}
	checkout := &service.CheckoutService{Cart: cart, Orders: r, Pool: checkoutPool, Events: mykafka.Nop{}}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")

	e := echo.New()
	e.Use(loggingmw.RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e.Use(m.Middleware())
	Register(e, &Deps{
		CatalogHandler:  &CatalogHTTP{Svc: &service.CatalogService{Store: r}},
		CartHandler:     &CartHTTP{Svc: cart},
		CheckoutHandler: &CheckoutHTTP{Svc: checkout},
		OrderHandler:    &OrderHTTP{Svc: &service.OrderService{Store: r, Events: mykafka.Nop{}}},
		JWTSecret:       testSecret,
		Metrics:         m,
		Gatherer:        reg,
	})
	return &testServer{E: e, DB: gdb}
}

func token(t *testing.T, role string) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	tok, err := tokens.NewAccessToken(testSecret, id, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return id, tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Code
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_test_http_requests_total")
}

func TestCookieSessionNeedsCSRFToken(t *testing.T) {
	s := newTestServer(t)
	p := testutil.SeedProduct(t, s.DB, "mug", "9.50", 3)
	_, tok := token(t, session.RoleUser)
	auth := &http.Cookie{Name: "accessToken", Value: tok}

	get := httptest.NewRequest(http.MethodGet, "/cart", nil)
	get.AddCookie(auth)
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)
	csrfToken := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, csrfToken)

	post := func(withToken bool) int {
		body, err := json.Marshal(transport.AddToCartRequest{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/cart", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("Origin", "http://example.com")
		req.AddCookie(auth)
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: csrfToken})
		if withToken {
			req.Header.Set("X-CSRF-Token", csrfToken)
		}
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, post(false))
	assert.Equal(t, http.StatusCreated, post(true))
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)
	p := testutil.SeedProduct(t, s.DB, "mug", "9.50", 3)
	_, tok := token(t, session.RoleUser)

	rec := s.do(t, http.MethodPost, "/cart", "", transport.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/cart", tok, transport.AddToCartRequest{ProductID: p.ID, Quantity: 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.KindInvalidQuantity, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/cart", tok, transport.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))

	rec = s.do(t, http.MethodPost, "/cart", tok, transport.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.KindInsufficientStock, errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/cart", tok, transport.AddToCartRequest{ProductID: uuid.New(), Quantity: 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.KindProductNotFound, errorCode(t, rec))

	rec = s.do(t, http.MethodPatch, "/cart/items/"+item.ID.String(), tok, transport.UpdateQuantityRequest{Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/cart", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st cartview.CartState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.ItemCount)
	assert.Equal(t, "28.5", st.Total.String())

	rec = s.do(t, http.MethodDelete, "/cart/items/"+item.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/cart/items/"+item.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/cart/items/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutAndOrders(t *testing.T) {
	s := newTestServer(t)
	p := testutil.SeedProduct(t, s.DB, "lamp", "20", 2)
	_, tok := token(t, session.RoleUser)
	_, adminTok := token(t, session.RoleAdmin)

	rec := s.do(t, http.MethodPost, "/checkout?wait=true", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st service.CheckoutStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, service.CheckoutError, st.State)
	require.NotNil(t, st.Result)
	assert.Equal(t, service.MsgCartEmpty, st.Result.Error)

	rec = s.do(t, http.MethodPost, "/cart", tok, transport.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout?wait=true", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, service.CheckoutCompleted, st.State)
	require.NotNil(t, st.Result)
	orderID := st.Result.OrderID

	rec = s.do(t, http.MethodGet, "/checkout", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), string(service.CheckoutCompleted)))

	rec = s.do(t, http.MethodGet, "/orders", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page transport.Page[models.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Meta.Total)

	rec = s.do(t, http.MethodGet, "/orders/"+orderID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status", tok, transport.UpdateOrderStatusRequest{Status: "DELIVERED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status", adminTok, transport.UpdateOrderStatusRequest{Status: "PENDING"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.KindInvalidTransition, errorCode(t, rec))

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+orderID.String()+"/status", adminTok, transport.UpdateOrderStatusRequest{Status: "DELIVERED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/admin/orders/"+orderID.String()+"/recalculate", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/orders?status=DELIVERED", tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodGet, "/admin/orders?status=LOST", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/admin/orders?status=DELIVERED", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Meta.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, orderID, page.Data[0].ID)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)
	_, tok := token(t, session.RoleUser)
	_, adminTok := token(t, session.RoleAdmin)

	create := map[string]any{"name": "Kettle", "description": "steel", "price": "30.00", "stock": 4}
	rec := s.do(t, http.MethodPost, "/catalog/products", tok, create)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/catalog/products", adminTok, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var prod models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))

	rec = s.do(t, http.MethodPatch, "/catalog/products/"+prod.ID.String(), adminTok, map[string]any{"stock": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/catalog/products/"+prod.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	assert.Equal(t, 10, prod.Stock)

	rec = s.do(t, http.MethodGet, "/catalog/products?page=1&size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page transport.Page[models.Product]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Meta.Total)

	rec = s.do(t, http.MethodGet, "/catalog/products/search?q=kett", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)

	rec = s.do(t, http.MethodGet, "/catalog/products/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/catalog/products/"+prod.ID.String()+"/reviews", tok, transport.AddReviewRequest{Rating: 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodGet, "/catalog/products/"+prod.ID.String()+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/catalog/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogFilters(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := token(t, session.RoleAdmin)

	for _, p := range []map[string]any{
		{"name": "Mug", "category": "kitchen", "price": "5", "stock": 0},
		{"name": "Pot", "category": "kitchen", "price": "25", "stock": 3},
		{"name": "Lamp", "category": "living", "price": "40", "stock": 1},
	} {
		rec := s.do(t, http.MethodPost, "/catalog/products", adminTok, p)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	names := func(rec *httptest.ResponseRecorder) []string {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page transport.Page[models.Product]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		out := make([]string, 0, len(page.Data))
		for _, p := range page.Data {
			out = append(out, p.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Mug", "Pot"}, names(s.do(t, http.MethodGet, "/catalog/products?category=kitchen", "", nil)))
	assert.Equal(t, []string{"Pot", "Lamp"}, names(s.do(t, http.MethodGet, "/catalog/products?in_stock=true", "", nil)))
	assert.Equal(t, []string{"Pot"}, names(s.do(t, http.MethodGet, "/catalog/products?min_price=10&max_price=30", "", nil)))
	assert.Equal(t, []string{"Lamp", "Pot", "Mug"}, names(s.do(t, http.MethodGet, "/catalog/products?sort=price_desc", "", nil)))

	for _, q := range []string{"min_price=abc", "in_stock=maybe", "sort=cheapest", "min_price=30&max_price=10"} {
		rec := s.do(t, http.MethodGet, "/catalog/products?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReviewEditRoutes(t *testing.T) {
	s := newTestServer(t)
	p := testutil.SeedProduct(t, s.DB, "Desk", "90", 1)
	_, authorTok := token(t, session.RoleUser)
	_, otherTok := token(t, session.RoleUser)
	base := "/catalog/products/" + p.ID.String() + "/reviews"

	rec := s.do(t, http.MethodPost, base, authorTok, transport.AddReviewRequest{Rating: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, base, otherTok, transport.AddReviewRequest{Rating: 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, base+"?page=1&size=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page transport.Page[models.Review]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Meta.Total)
	assert.Len(t, page.Data, 1)

	rec = s.do(t, http.MethodGet, base, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 2)
	id := page.Data[0].ID.String()

	five := 5
	rec = s.do(t, http.MethodPatch, base+"/"+id, "", transport.UpdateReviewRequest{Rating: &five})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	owner, stranger := authorTok, otherTok
	if page.Data[0].Rating == 4 {
		owner, stranger = otherTok, authorTok
	}
	rec = s.do(t, http.MethodPatch, base+"/"+id, stranger, transport.UpdateReviewRequest{Rating: &five})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.KindReviewNotFound, errorCode(t, rec))

	rec = s.do(t, http.MethodPatch, base+"/"+id, owner, transport.UpdateReviewRequest{Rating: &five})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prod models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	assert.Equal(t, 2, prod.ReviewCount)

	rec = s.do(t, http.MethodDelete, base+"/"+id, owner, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/"+id, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/catalog/products/"+p.ID.String(), "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prod))
	assert.Equal(t, 1, prod.ReviewCount)
}
