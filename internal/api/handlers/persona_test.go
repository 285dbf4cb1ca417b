package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPersonaService struct {
	mock.Mock
}

func (m *MockPersonaService) List(ctx context.Context) ([]*domain.PersonaProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PersonaProfile), args.Error(1)
}

func (m *MockPersonaService) Get(ctx context.Context, id string) (*domain.PersonaProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PersonaProfile), args.Error(1)
}

func (m *MockPersonaService) Create(ctx context.Context, input service.CreatePersonaInput) (*domain.PersonaProfile, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PersonaProfile), args.Error(1)
}

func (m *MockPersonaService) Update(ctx context.Context, id string, input service.UpdatePersonaInput) (*domain.PersonaProfile, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PersonaProfile), args.Error(1)
}

func (m *MockPersonaService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func testPersona() *domain.PersonaProfile {
	return &domain.PersonaProfile{
		ID:          "barista",
		Name:        "Sam",
		Personality: "Cheerful",
		Style:       "Short sentences",
	}
}

func TestPersonaHandler_List(t *testing.T) {
	mockSvc := new(MockPersonaService)
	handler := NewPersonaHandler(mockSvc)

	builtin := &domain.PersonaProfile{ID: "support", Name: "Support", Builtin: true, AllowedTools: []string{domain.ToolRetrieval}}
	mockSvc.On("List", mock.Anything).Return([]*domain.PersonaProfile{testPersona(), builtin}, nil)

	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items, ok := decodeData(t, w)["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "barista", first["id"])
	assert.Equal(t, []any{}, first["allowed_tools"])
	assert.Equal(t, true, items[1].(map[string]any)["builtin"])
}

func TestPersonaHandler_Create(t *testing.T) {
	mockSvc := new(MockPersonaService)
	handler := NewPersonaHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, service.CreatePersonaInput{
		ID:           "barista",
		Name:         "Sam",
		Personality:  "Cheerful",
		Style:        "Short sentences",
		AllowedTools: []string{"retrieval"},
	}).Return(testPersona(), nil)

	body := `{"id":"barista","name":"Sam","personality":"Cheerful","style":"Short sentences","allowed_tools":["retrieval"]}`
	req := httptest.NewRequest(http.MethodPost, "/personas", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestPersonaHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing id", `{"name":"Sam"}`, nil, http.StatusBadRequest},
		{"duplicate", `{"id":"support","name":"S"}`, domain.ErrPersonaAlreadyExists, http.StatusConflict},
		{"invalid", `{"id":"Bad Id","name":"S"}`, domain.ErrInvalidPersonaID, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockPersonaService)
			handler := NewPersonaHandler(mockSvc)
			if tt.err != nil {
				mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			req := httptest.NewRequest(http.MethodPost, "/personas", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPersonaHandler_Update_PartialFields(t *testing.T) {
	mockSvc := new(MockPersonaService)
	handler := NewPersonaHandler(mockSvc)

	mockSvc.On("Update", mock.Anything, "barista", mock.MatchedBy(func(in service.UpdatePersonaInput) bool {
		return in.Style != nil && *in.Style == "Long sentences" && in.Name == nil && in.AllowedTools == nil
	})).Return(testPersona(), nil)

	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/personas/barista", bytes.NewReader([]byte(`{"style":"Long sentences"}`))), "id", "barista")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestPersonaHandler_Delete(t *testing.T) {
	t.Run("runtime persona", func(t *testing.T) {
		mockSvc := new(MockPersonaService)
		handler := NewPersonaHandler(mockSvc)
		mockSvc.On("Delete", mock.Anything, "barista").Return(nil)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/personas/barista", nil), "id", "barista")
		w := httptest.NewRecorder()

		handler.Delete(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("builtin persona", func(t *testing.T) {
		mockSvc := new(MockPersonaService)
		handler := NewPersonaHandler(mockSvc)
		mockSvc.On("Delete", mock.Anything, "support").Return(domain.ErrBuiltinPersonaReadOnly)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/personas/support", nil), "id", "support")
		w := httptest.NewRecorder()

		handler.Delete(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPersonaHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockPersonaService)
	handler := NewPersonaHandler(mockSvc)
	mockSvc.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrPersonaNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/personas/ghost", nil), "id", "ghost")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
