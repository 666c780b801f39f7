package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/you/reserveq/internal/catalog"
	"github.com/you/reserveq/internal/domain"
	"github.com/you/reserveq/internal/kvstore"
	"github.com/you/reserveq/internal/ledger"
	"github.com/you/reserveq/internal/notification"
	"github.com/you/reserveq/internal/notify"
	"github.com/you/reserveq/internal/queue"
	"github.com/you/reserveq/internal/reservation"
	"github.com/you/reserveq/internal/worker"
)

type fixture struct {
	srv *httptest.Server
	q   *queue.Queue
	led *ledger.Ledger
}

func newFixture(t *testing.T, seats int64) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := kvstore.NewMemory()
	notifier := notify.New(log)
	q := queue.New(store, notifier, log)
	led := ledger.New(store, log)
	cat := catalog.Default()
	ctx := context.Background()

	if err := led.Initialize(ctx, reservation.SeatKey, seats); err != nil {
		t.Fatal(err)
	}
	for _, p := range cat.List() {
		if err := led.Initialize(ctx, p.Key(), p.InitialAvailableQuantity); err != nil {
			t.Fatal(err)
		}
	}

	q.RegisterHandler(reservation.SeatTopic, 1, reservation.NewHandler(led, log))
	q.RegisterHandler(reservation.StockTopic, 1, reservation.NewHandler(led, log))
	q.RegisterHandler(notification.TopicName, 2,
		notification.NewHandler(notification.DefaultBlacklist(), log))

	poolCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go worker.New(q, log, 20*time.Millisecond, nil).Run(poolCtx)

	srv := httptest.NewServer(New(q, led, cat, log).Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, q: q, led: led}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func waitTerminal(t *testing.T, q *queue.Queue, topic string, id int64) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := q.Lookup(topic, id); ok && j.State.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s/%d never reached a terminal state", topic, id)
	return domain.Job{}
}

func TestAvailableSeats(t *testing.T) {
	f := newFixture(t, 50)

	var body map[string]string
	if code := getJSON(t, f.srv.URL+"/available_seats", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["numberOfAvailableSeats"] != "50" {
		t.Errorf("expected seat count as string \"50\", got %q", body["numberOfAvailableSeats"])
	}
}

func TestReserveSeat_FlowToBlocked(t *testing.T) {
	f := newFixture(t, 1)

	var body struct {
		Status string `json:"status"`
		JobID  int64  `json:"jobId"`
	}
	getJSON(t, f.srv.URL+"/reserve_seat", &body)
	if body.Status != "Reservation in process" {
		t.Fatalf("expected in-process status, got %q", body.Status)
	}

	job := waitTerminal(t, f.q, reservation.SeatTopic, body.JobID)
	if job.State != domain.StateComplete {
		t.Fatalf("expected reservation to complete, got %s (%s)", job.State, job.FailureReason)
	}

	var seats map[string]string
	getJSON(t, f.srv.URL+"/available_seats", &seats)
	if seats["numberOfAvailableSeats"] != "0" {
		t.Errorf("expected 0 seats, got %q", seats["numberOfAvailableSeats"])
	}

	var blocked map[string]any
	getJSON(t, f.srv.URL+"/reserve_seat", &blocked)
	if blocked["status"] != "Reservation are blocked" {
		t.Errorf("expected blocked status, got %v", blocked["status"])
	}
}

func TestListProducts(t *testing.T) {
	f := newFixture(t, 10)

	var products []catalog.Product
	getJSON(t, f.srv.URL+"/list_products", &products)
	if len(products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(products))
	}
	if products[0].ItemName != "Suitcase 250" || products[0].InitialAvailableQuantity != 4 {
		t.Errorf("unexpected first product: %+v", products[0])
	}
}

func TestProductDetail(t *testing.T) {
	f := newFixture(t, 10)

	var detail map[string]any
	getJSON(t, f.srv.URL+"/list_products/3", &detail)
	if detail["itemName"] != "Suitcase 650" {
		t.Errorf("expected Suitcase 650, got %v", detail["itemName"])
	}
	if detail["currentQuantity"] != float64(2) {
		t.Errorf("expected currentQuantity 2, got %v", detail["currentQuantity"])
	}

	var missing map[string]string
	getJSON(t, f.srv.URL+"/list_products/99", &missing)
	if missing["status"] != "Product not found" {
		t.Errorf("expected product-not-found, got %q", missing["status"])
	}
}

func TestReserveProduct_ShortCircuitsAtZero(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	if err := f.led.Initialize(ctx, "item.3", 0); err != nil {
		t.Fatal(err)
	}

	var body map[string]any
	getJSON(t, f.srv.URL+"/reserve_product/3", &body)
	if body["status"] != "Not enough stock available" {
		t.Errorf("expected short-circuit, got %v", body["status"])
	}
}

func TestReserveProduct_Reserves(t *testing.T) {
	f := newFixture(t, 10)

	var body struct {
		Status string `json:"status"`
		JobID  int64  `json:"jobId"`
	}
	getJSON(t, f.srv.URL+"/reserve_product/1", &body)
	if body.Status != "Reservation in process" {
		t.Fatalf("expected in-process, got %q", body.Status)
	}

	job := waitTerminal(t, f.q, reservation.StockTopic, body.JobID)
	if job.State != domain.StateComplete {
		t.Fatalf("expected complete, got %s (%s)", job.State, job.FailureReason)
	}

	var detail map[string]any
	getJSON(t, f.srv.URL+"/list_products/1", &detail)
	if detail["currentQuantity"] != float64(3) {
		t.Errorf("expected currentQuantity 3 after reservation, got %v", detail["currentQuantity"])
	}
}

func TestCreateJobs(t *testing.T) {
	f := newFixture(t, 10)

	resp, err := http.Post(f.srv.URL+"/jobs", "application/json",
		strings.NewReader(`[{"phoneNumber":"4153518743","message":"This is the code 4321 to verify your account"}]`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if len(created.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(created.Jobs))
	}

	job := waitTerminal(t, f.q, notification.TopicName, created.Jobs[0].ID)
	if job.State != domain.StateComplete {
		t.Errorf("expected notification to complete, got %s (%s)", job.State, job.FailureReason)
	}
}

func TestCreateJobs_NotAnArray(t *testing.T) {
	f := newFixture(t, 10)

	resp, err := http.Post(f.srv.URL+"/jobs", "application/json", strings.NewReader(`{"phoneNumber":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "jobs is not an array" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	f := newFixture(t, 10)

	var body map[string]string
	if code := getJSON(t, f.srv.URL+"/jobs/reserve_seat/42", &body); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if body["status"] != "Job not found" {
		t.Errorf("unexpected body: %v", body)
	}
}
