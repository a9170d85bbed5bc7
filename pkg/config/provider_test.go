package config

import (
	"context"
	"strings"
	"testing"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockStateStore) ListState(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	base := DefaultConfig()

	tests := []struct {
		name   string
		store  map[string]string
		check  func(p *UnifiedProvider) any
		expect any
	}{
		{
			name:   "Address_Fallback",
			check:  func(p *UnifiedProvider) any { return p.LinkAddress(ctx) },
			expect: "udpin://0.0.0.0:14540",
		},
		{
			name:   "Address_Override",
			store:  map[string]string{KeyLinkAddress: "tcp://127.0.0.1:5760"},
			check:  func(p *UnifiedProvider) any { return p.LinkAddress(ctx) },
			expect: "tcp://127.0.0.1:5760",
		},
		{
			name:   "Provider_Override",
			store:  map[string]string{KeyLinkProvider: "mock"},
			check:  func(p *UnifiedProvider) any { return p.LinkProvider(ctx) },
			expect: "mock",
		},
		{
			name:   "Autostart_Fallback",
			check:  func(p *UnifiedProvider) any { return p.AutostartEnabled(ctx) },
			expect: false,
		},
		{
			name:   "Autostart_Override",
			store:  map[string]string{KeyAutostartEnabled: "true"},
			check:  func(p *UnifiedProvider) any { return p.AutostartEnabled(ctx) },
			expect: true,
		},
		{
			name:   "Autostart_Garbage",
			store:  map[string]string{KeyAutostartEnabled: "maybe"},
			check:  func(p *UnifiedProvider) any { return p.AutostartEnabled(ctx) },
			expect: false,
		},
		{
			name:   "TakeoffAltitude_Fallback",
			check:  func(p *UnifiedProvider) any { return p.TakeoffAltitude(ctx) },
			expect: 5.0,
		},
		{
			name:   "TakeoffAltitude_Distance",
			store:  map[string]string{KeyTakeoffAltitude: "30ft"},
			check:  func(p *UnifiedProvider) any { return p.TakeoffAltitude(ctx) },
			expect: 30 * 0.3048,
		},
		{
			name:   "Tolerance_Override",
			store:  map[string]string{KeyHorizontalTolerance: "2.5"},
			check:  func(p *UnifiedProvider) any { return p.HorizontalTolerance(ctx) },
			expect: 2.5,
		},
		{
			name:   "VerticalTolerance_Fallback",
			check:  func(p *UnifiedProvider) any { return p.VerticalTolerance(ctx) },
			expect: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMockStateStore()
			for k, v := range tt.store {
				st.data[k] = v
			}
			p := NewProvider(base, st)
			if got := tt.check(p); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestUnifiedProvider_NilStore(t *testing.T) {
	p := NewProvider(DefaultConfig(), nil)
	if got := p.LinkAddress(context.Background()); got != "udpin://0.0.0.0:14540" {
		t.Errorf("LinkAddress() = %q", got)
	}
	if p.AppConfig() == nil {
		t.Error("AppConfig() returned nil")
	}
}
