package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/realtime"
	"github.com/LexiconIndonesia/catalog-sync-service/common/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryProducts is an in-memory services.ProductService
type memoryProducts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Product
}

func newMemoryProducts() *memoryProducts {
	return &memoryProducts{rows: map[int64]models.Product{}}
}

func (m *memoryProducts) List(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryProducts) GetByID(ctx context.Context, id int64) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return models.Product{}, services.ErrNotFound
	}
	return p, nil
}

func (m *memoryProducts) Create(ctx context.Context, record models.ProductRecord) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := models.Product{ID: m.nextID, Name: record.Name, Price: record.Price}
	m.rows[p.ID] = p
	return p, nil
}

func (m *memoryProducts) Update(ctx context.Context, id int64, record models.ProductRecord) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return models.Product{}, services.ErrNotFound
	}
	p := models.Product{ID: id, Name: record.Name, Price: record.Price}
	m.rows[id] = p
	return p, nil
}

func (m *memoryProducts) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return services.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryProducts) ReplaceCatalog(ctx context.Context, records []models.ProductRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = map[int64]models.Product{}
	for _, r := range records {
		m.nextID++
		m.rows[m.nextID] = models.Product{ID: m.nextID, Name: r.Name, Price: r.Price}
	}
	return int64(len(records)), nil
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameRecorder) ID() string { return "recorder" }

func (f *frameRecorder) Send(ctx context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, string(frame))
	return nil
}

func (f *frameRecorder) Close() error { return nil }

func (f *frameRecorder) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newProductFixture(t *testing.T) (http.Handler, *frameRecorder, *memoryProducts) {
	t.Helper()
	b := realtime.NewBroadcaster(realtime.Options{})
	t.Cleanup(b.Close)
	sub := &frameRecorder{}
	require.NoError(t, b.Register(sub))

	products := newMemoryProducts()
	return NewProductHandler(products, b).Router(), sub, products
}

func TestProductLifecycle(t *testing.T) {
	h, sub, _ := newProductFixture(t)

	rec, env := doRequest(t, h, http.MethodPost, "/", map[string]interface{}{"name": "Widget", "price": 9.99})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Widget", created.Name)
	assert.Equal(t, 9.99, created.Price)

	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	expected, err := realtime.ProductEvent(realtime.EventCreateProduct, created).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), sub.snapshot()[0])

	path := "/" + jsonNumber(created.ID)
	rec, env = doRequest(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.Product
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created, fetched)

	rec, env = doRequest(t, h, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", env.Message)

	rec, env = doRequest(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", env.Message)

	require.Eventually(t, func() bool { return len(sub.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	frames := sub.snapshot()
	assert.Contains(t, frames[1], `"event":"get_product"`)
	assert.JSONEq(t, `{"event":"delete_product","payload":{"product_id":`+jsonNumber(created.ID)+`}}`, frames[2])
}

func TestListAndUpdateProducts(t *testing.T) {
	h, sub, products := newProductFixture(t)
	_, err := products.ReplaceCatalog(context.Background(), []models.ProductRecord{{Name: "A", Price: 1}, {Name: "B", Price: 2}})
	require.NoError(t, err)

	rec, env := doRequest(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 2)

	rec, env = doRequest(t, h, http.MethodPut, "/1", map[string]interface{}{"name": "A2", "price": 3.5})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.Product{ID: 1, Name: "A2", Price: 3.5}, updated)

	require.Eventually(t, func() bool { return len(sub.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, sub.snapshot()[0], `"event":"get_products"`)
	assert.JSONEq(t, `{"event":"update_product","payload":{"product":{"id":1,"name":"A2","price":3.5}}}`, sub.snapshot()[1])
}

func TestListEmptyCatalogReturnsArray(t *testing.T) {
	h, _, _ := newProductFixture(t)

	rec, env := doRequest(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestProductErrors(t *testing.T) {
	h, sub, _ := newProductFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"update unknown id", http.MethodPut, "/42", map[string]interface{}{"name": "x", "price": 1}, http.StatusNotFound},
		{"delete unknown id", http.MethodDelete, "/42", nil, http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/abc", nil, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/", map[string]interface{}{"price": 1}, http.StatusBadRequest},
		{"missing price", http.MethodPost, "/", map[string]interface{}{"name": "x"}, http.StatusBadRequest},
		{"negative price", http.MethodPost, "/", map[string]interface{}{"name": "x", "price": -1}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, http.StatusText(tt.status), env.Error)
		})
	}

	// failed operations publish nothing
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sub.snapshot())
}

func TestCreateWithZeroPrice(t *testing.T) {
	h, _, _ := newProductFixture(t)

	rec, env := doRequest(t, h, http.MethodPost, "/", map[string]interface{}{"name": "Free", "price": 0})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Product
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Zero(t, created.Price)
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
