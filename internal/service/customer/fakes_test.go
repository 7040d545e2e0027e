package customer

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/jmehdipour/outline-admin/internal/model"
	"github.com/jmehdipour/outline-admin/internal/outline"
	"github.com/jmehdipour/outline-admin/internal/repository"
)

type fakeCustomers struct {
	mu        sync.Mutex
	rows      map[string]model.Customer
	updateErr error
}

func newFakeCustomers(cs ...model.Customer) *fakeCustomers {
	f := &fakeCustomers{rows: map[string]model.Customer{}}
	for _, c := range cs {
		f.rows[c.ID] = c
	}
	return f
}

func (f *fakeCustomers) get(id string) model.Customer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeCustomers) Create(_ context.Context, c model.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[c.ID] = c
	return nil
}

func (f *fakeCustomers) GetByID(_ context.Context, id string) (*model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCustomers) List(_ context.Context, flt repository.CustomerFilter) ([]model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Customer{}
	for _, c := range f.rows {
		if flt.Status == "" || c.Status == flt.Status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCustomers) Update(_ context.Context, c model.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rows[c.ID] = c
	return nil
}

func (f *fakeCustomers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeCustomers) ListOverdue(_ context.Context, now time.Time, limit int) ([]model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Customer{}
	for _, c := range f.rows {
		if c.Overdue(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCustomers) BatchExpire(_ context.Context, ids []string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := f.rows[id]
		if !ok || !c.Overdue(now) {
			continue
		}
		c.Status = model.StatusExpired
		c.UpdatedAt = now
		f.rows[id] = c
		n++
	}
	return n, nil
}

// fakeKeys tracks which access keys exist. Deleting an unknown key answers 404.
type fakeKeys struct {
	mu        sync.Mutex
	seq       int
	live      map[string]string // id -> name
	calls     []string
	deleteErr map[string]error
	renameErr error
	delay     time.Duration
}

func newFakeKeys(existing ...string) *fakeKeys {
	k := &fakeKeys{live: map[string]string{}, deleteErr: map[string]error{}}
	for _, id := range existing {
		k.live[id] = ""
	}
	return k
}

func (k *fakeKeys) called(call string) {
	k.calls = append(k.calls, call)
}

func (k *fakeKeys) Calls() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.calls...)
}

func (k *fakeKeys) Live() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.live))
	for id := range k.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (k *fakeKeys) CreateKey(context.Context) (outline.AccessKey, error) {
	if k.delay > 0 {
		time.Sleep(k.delay)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.seq++
	id := fmt.Sprintf("new%d", k.seq)
	k.live[id] = ""
	k.called("create")
	return outline.AccessKey{ID: id, AccessURL: "ss://" + id}, nil
}

func (k *fakeKeys) RenameKey(_ context.Context, id, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.called("rename:" + id + ":" + name)
	if k.renameErr != nil {
		return k.renameErr
	}
	if _, ok := k.live[id]; !ok {
		return notFound("rename")
	}
	k.live[id] = name
	return nil
}

func (k *fakeKeys) DeleteKey(_ context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.called("delete:" + id)
	if err := k.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := k.live[id]; !ok {
		return notFound("delete")
	}
	delete(k.live, id)
	return nil
}

func (k *fakeKeys) SetDataLimit(_ context.Context, id string, limitBytes int64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.called(fmt.Sprintf("limit:%s:%d", id, limitBytes))
	return nil
}

func (k *fakeKeys) RemoveDataLimit(_ context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.called("unlimit:" + id)
	return nil
}

func notFound(op string) error {
	return &outline.APIError{Op: op, StatusCode: http.StatusNotFound, Body: "not found"}
}

func serverError(op string) error {
	return &outline.APIError{Op: op, StatusCode: http.StatusInternalServerError, Body: "boom"}
}

type auditEntry struct {
	Action     model.AuditAction
	CustomerID string
	Meta       any
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAudit) Append(_ context.Context, action model.AuditAction, customerID string, meta any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{Action: action, CustomerID: customerID, Meta: meta})
	return nil
}

func (a *fakeAudit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, strings.TrimPrefix(e.Action.String(), "customer.")+":"+e.CustomerID)
	}
	sort.Strings(out)
	return out
}
