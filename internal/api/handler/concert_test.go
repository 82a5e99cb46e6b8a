package handler

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-service/internal/application"
	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
)

// MockConcertService はConcertServiceInterfaceのモック
type MockConcertService struct {
	mock.Mock
}

func (m *MockConcertService) CreateConcert(ctx context.Context, input application.CreateConcertInput) (*concert.Concert, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.Concert), args.Error(1)
}

func (m *MockConcertService) GetConcert(ctx context.Context, id int64) (*concert.Concert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.Concert), args.Error(1)
}

func (m *MockConcertService) ListConcerts(ctx context.Context, start int64, size int) ([]*concert.Concert, error) {
	args := m.Called(ctx, start, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*concert.Concert), args.Error(1)
}

func (m *MockConcertService) UpdateConcert(ctx context.Context, input application.UpdateConcertInput) (*concert.Concert, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*concert.Concert), args.Error(1)
}

func (m *MockConcertService) DeleteConcert(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConcertService) DeleteAllConcerts(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var concertDate = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "echo.HTTPError expected, got %T", err)
	assert.Equal(t, code, he.Code)
}

func TestConcertHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("作成してLocationを返す", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "/services", 20)

		mockService.On("CreateConcert", mock.Anything, application.CreateConcertInput{Title: "Lorde", Date: concertDate}).
			Return(&concert.Concert{ID: 5, Title: "Lorde", Date: concertDate}, nil)

		req := httptest.NewRequest(http.MethodPost, "/concerts", strings.NewReader(`{"title":"Lorde","date":"2026-03-14T19:30:00Z"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/services/concerts/5", rec.Header().Get(echo.HeaderLocation))

		var resp ConcertResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(5), resp.ID)
		assert.Equal(t, "Lorde", resp.Title)
		assert.Equal(t, "2026-03-14T19:30:00Z", resp.Date)
		mockService.AssertExpectations(t)
	})

	t.Run("XMLのリクエストとレスポンス", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)

		mockService.On("CreateConcert", mock.Anything, application.CreateConcertInput{Title: "Six60", Date: concertDate}).
			Return(&concert.Concert{ID: 1, Title: "Six60", Date: concertDate}, nil)

		body := `<concert><title>Six60</title><date>2026-03-14T19:30:00Z</date></concert>`
		req := httptest.NewRequest(http.MethodPost, "/concerts", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationXML)
		req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationXML)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationXML)

		var resp ConcertResponse
		require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "Six60", resp.Title)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "不正なJSON", body: "invalid json"},
		{name: "タイトルなし", body: `{"date":"2026-03-14T19:30:00Z"}`},
		{name: "日時なし", body: `{"title":"Lorde"}`},
		{name: "日時の形式が不正", body: `{"title":"Lorde","date":"14/03/2026"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name+"は400", func(t *testing.T) {
			mockService := new(MockConcertService)
			handler := NewConcertHandler(mockService, "", 20)

			req := httptest.NewRequest(http.MethodPost, "/concerts", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.Create(c)

			assertHTTPError(t, err, http.StatusBadRequest)
			mockService.AssertNotCalled(t, "CreateConcert", mock.Anything, mock.Anything)
		})
	}
}

func TestConcertHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に取得できる", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("GetConcert", mock.Anything, int64(3)).
			Return(&concert.Concert{ID: 3, Title: "Fat Freddy's Drop", Date: concertDate}, nil)

		req := httptest.NewRequest(http.MethodGet, "/concerts/3", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("3")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"Fat Freddy's Drop"`)
	})

	t.Run("存在しなければ404", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("GetConcert", mock.Anything, int64(99)).Return(nil, concert.ErrConcertNotFound)

		req := httptest.NewRequest(http.MethodGet, "/concerts/99", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("99")

		assertHTTPError(t, handler.GetByID(c), http.StatusNotFound)
	})

	t.Run("数値でないIDは400", func(t *testing.T) {
		handler := NewConcertHandler(new(MockConcertService), "", 20)

		req := httptest.NewRequest(http.MethodGet, "/concerts/abc", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("abc")

		assertHTTPError(t, handler.GetByID(c), http.StatusBadRequest)
	})

	t.Run("予期しないエラーは500", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("GetConcert", mock.Anything, int64(1)).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/concerts/1", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("1")

		assertHTTPError(t, handler.GetByID(c), http.StatusInternalServerError)
	})
}

func TestConcertHandler_List(t *testing.T) {
	e := NewTestEcho()
	page := []*concert.Concert{
		{ID: 3, Title: "C", Date: concertDate},
		{ID: 4, Title: "D", Date: concertDate},
	}

	t.Run("start と size を渡す", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("ListConcerts", mock.Anything, int64(3), 2).Return(page, nil)

		req := httptest.NewRequest(http.MethodGet, "/concerts?start=3&size=2", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.List(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []ConcertResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, int64(3), resp[0].ID)
		assert.Equal(t, int64(4), resp[1].ID)
	})

	t.Run("省略時は先頭からデフォルト件数", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("ListConcerts", mock.Anything, int64(0), 20).Return([]*concert.Concert{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/concerts", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.List(c)

		require.NoError(t, err)
		assert.JSONEq(t, `[]`, rec.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("XMLでは concerts 要素で包む", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("ListConcerts", mock.Anything, int64(0), 20).Return(page, nil)

		req := httptest.NewRequest(http.MethodGet, "/concerts", nil)
		req.Header.Set(echo.HeaderAccept, "application/xml")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.List(c)

		require.NoError(t, err)
		var resp ConcertListResponse
		require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "concerts", resp.XMLName.Local)
		require.Len(t, resp.Concerts, 2)
		assert.Equal(t, "C", resp.Concerts[0].Title)
	})

	for _, query := range []string{"start=abc", "size=-1", "start=-5", "size=1.5"} {
		t.Run(query+"は400", func(t *testing.T) {
			mockService := new(MockConcertService)
			handler := NewConcertHandler(mockService, "", 20)

			req := httptest.NewRequest(http.MethodGet, "/concerts?"+query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			assertHTTPError(t, handler.List(c), http.StatusBadRequest)
			mockService.AssertNotCalled(t, "ListConcerts", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestConcertHandler_Update(t *testing.T) {
	e := NewTestEcho()
	body := `{"title":"Updated","date":"2026-03-14T19:30:00Z"}`

	t.Run("更新は204", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		input := application.UpdateConcertInput{ID: 2, Title: "Updated", Date: concertDate}
		mockService.On("UpdateConcert", mock.Anything, input).
			Return(&concert.Concert{ID: 2, Title: "Updated", Date: concertDate}, nil)

		req := httptest.NewRequest(http.MethodPut, "/concerts/2", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("2")

		err := handler.Update(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("存在しないIDは404", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("UpdateConcert", mock.Anything, mock.Anything).Return(nil, concert.ErrConcertNotFound)

		req := httptest.NewRequest(http.MethodPut, "/concerts/42", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("42")

		assertHTTPError(t, handler.Update(c), http.StatusNotFound)
	})

	t.Run("不正な本文は400", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)

		req := httptest.NewRequest(http.MethodPut, "/concerts/2", strings.NewReader(`{"title":""}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("2")

		assertHTTPError(t, handler.Update(c), http.StatusBadRequest)
	})
}

func TestConcertHandler_Delete(t *testing.T) {
	e := NewTestEcho()

	t.Run("削除は204", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("DeleteConcert", mock.Anything, int64(1)).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/concerts/1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("1")

		require.NoError(t, handler.Delete(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("存在しないIDは404", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("DeleteConcert", mock.Anything, int64(8)).Return(concert.ErrConcertNotFound)

		req := httptest.NewRequest(http.MethodDelete, "/concerts/8", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("8")

		assertHTTPError(t, handler.Delete(c), http.StatusNotFound)
	})

	t.Run("全件削除は204", func(t *testing.T) {
		mockService := new(MockConcertService)
		handler := NewConcertHandler(mockService, "", 20)
		mockService.On("DeleteAllConcerts", mock.Anything).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/concerts", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler.DeleteAll(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestToConcertResponse(t *testing.T) {
	nz := time.FixedZone("NZDT", 13*60*60)
	c := &concert.Concert{ID: 9, Title: "Benee", Date: time.Date(2026, 1, 2, 20, 0, 0, 0, nz)}

	resp := toConcertResponse(c)

	assert.Equal(t, int64(9), resp.ID)
	assert.Equal(t, "Benee", resp.Title)
	assert.Equal(t, "2026-01-02T20:00:00+13:00", resp.Date)
}
