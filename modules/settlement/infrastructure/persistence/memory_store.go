package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/ports"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
)

// MemoryStore keeps tenant data in process. The (tenant, payroll) index is
// checked and written under one lock, so it behaves like the unique
// constraint of the Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	payrolls    map[memKey]types.PayrollRecord
	settlements map[memKey]types.Settlement
	byPayroll   map[memKey]string
	rates       map[string]map[string]string
}

type memKey struct {
	tenantID string
	id       string
}

var (
	_ ports.SettlementStore  = (*MemoryStore)(nil)
	_ ports.RateSettingStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payrolls:    make(map[memKey]types.PayrollRecord),
		settlements: make(map[memKey]types.Settlement),
		byPayroll:   make(map[memKey]string),
		rates:       make(map[string]map[string]string),
	}
}

func (s *MemoryStore) PutPayroll(tenantID string, rec types.PayrollRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payrolls[memKey{tenantID, rec.ID}] = rec
}

func (s *MemoryStore) UpsertRateSettings(_ context.Context, tenantID string, settings []types.RateSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.rates[tenantID]
	if m == nil {
		m = make(map[string]string)
		s.rates[tenantID] = m
	}
	for _, r := range settings {
		m[strings.ToUpper(strings.TrimSpace(r.Key))] = strings.TrimSpace(r.Value)
	}
	return nil
}

func (s *MemoryStore) ListRateSettings(_ context.Context, tenantID string, keyPrefixes []string) ([]types.RateSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []types.RateSetting{}
	for k, v := range s.rates[tenantID] {
		if !hasAnyPrefix(k, keyPrefixes) {
			continue
		}
		out = append(out, types.RateSetting{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func hasAnyPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, strings.ToUpper(strings.TrimSpace(p))) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetPayrollWithEmployee(_ context.Context, tenantID string, payrollID string) (types.PayrollRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payrolls[memKey{tenantID, strings.TrimSpace(payrollID)}]
	return rec, ok, nil
}

func (s *MemoryStore) FindSettlementByPayrollID(_ context.Context, tenantID string, payrollID string) (types.Settlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPayroll[memKey{tenantID, strings.TrimSpace(payrollID)}]
	if !ok {
		return types.Settlement{}, false, nil
	}
	return cloneSettlement(s.settlements[memKey{tenantID, id}]), true, nil
}

func (s *MemoryStore) GetSettlement(_ context.Context, tenantID string, settlementID string) (types.Settlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.settlements[memKey{tenantID, strings.TrimSpace(settlementID)}]
	if !ok {
		return types.Settlement{}, false, nil
	}
	return cloneSettlement(out), true, nil
}

func (s *MemoryStore) ListSettlementsForEmployee(_ context.Context, tenantID string, employeeID string) ([]types.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []types.Settlement{}
	for k, v := range s.settlements {
		if k.tenantID == tenantID && v.EmployeeID == employeeID {
			out = append(out, cloneSettlement(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodStart != out[j].PeriodStart {
			return out[i].PeriodStart > out[j].PeriodStart
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateSettlement(_ context.Context, tenantID string, in types.Settlement) (types.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := memKey{tenantID, in.PayrollID}
	if _, exists := s.byPayroll[pk]; exists {
		return types.Settlement{}, fmt.Errorf("%w: payroll %s", types.ErrSettlementConflict, in.PayrollID)
	}
	if _, exists := s.settlements[memKey{tenantID, in.ID}]; exists {
		return types.Settlement{}, fmt.Errorf("settlement id %s already used", in.ID)
	}

	out := cloneSettlement(in)
	out.TenantID = tenantID
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	s.settlements[memKey{tenantID, out.ID}] = out
	s.byPayroll[pk] = out.ID
	return cloneSettlement(out), nil
}

func (s *MemoryStore) DeleteSettlement(_ context.Context, tenantID string, settlementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{tenantID, strings.TrimSpace(settlementID)}
	existing, ok := s.settlements[k]
	if !ok {
		return false, nil
	}
	delete(s.settlements, k)
	delete(s.byPayroll, memKey{tenantID, existing.PayrollID})
	return true, nil
}

func cloneSettlement(in types.Settlement) types.Settlement {
	out := in
	if in.Deductions != nil {
		out.Deductions = append([]types.DeductionLine(nil), in.Deductions...)
	}
	return out
}
