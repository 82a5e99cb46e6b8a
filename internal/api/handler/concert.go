package handler

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-concert-service/internal/api"
	"github.com/sanosuguru/go-concert-service/internal/application"
	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
)

type ConcertHandler struct {
	service         ConcertServiceInterface
	basePath        string
	defaultPageSize int
}

func NewConcertHandler(s ConcertServiceInterface, basePath string, defaultPageSize int) *ConcertHandler {
	return &ConcertHandler{service: s, basePath: basePath, defaultPageSize: defaultPageSize}
}

type ConcertRequest struct {
	Title string `json:"title" xml:"title" validate:"required" example:"Lorde: Melodrama World Tour"`
	Date  string `json:"date" xml:"date" validate:"required" example:"2026-03-14T19:30:00+13:00"`
}

type ConcertResponse struct {
	XMLName xml.Name `json:"-" xml:"concert"`
	ID      int64    `json:"id" xml:"id,attr" example:"1"`
	Title   string   `json:"title" xml:"title" example:"Lorde: Melodrama World Tour"`
	Date    string   `json:"date" xml:"date" example:"2026-03-14T19:30:00+13:00"`
}

// ConcertListResponse は XML の一覧表現（JSON では配列のまま返す）
type ConcertListResponse struct {
	XMLName  xml.Name          `xml:"concerts"`
	Concerts []ConcertResponse `xml:"concert"`
}

func toConcertResponse(c *concert.Concert) ConcertResponse {
	return ConcertResponse{
		ID:    c.ID,
		Title: c.Title,
		Date:  c.Date.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary コンサートを作成
// @Description 新しいコンサートを作成し、Locationヘッダーで参照先を返します
// @Tags concerts
// @Accept json,xml
// @Produce json,xml
// @Param request body ConcertRequest true "コンサート情報"
// @Success 201 {object} ConcertResponse
// @Failure 400 {object} map[string]string
// @Router /concerts [post]
func (h *ConcertHandler) Create(c echo.Context) error {
	input, err := h.bindConcert(c)
	if err != nil {
		return err
	}

	created, err := h.service.CreateConcert(c.Request().Context(), application.CreateConcertInput{
		Title: input.Title,
		Date:  input.Date,
	})
	if err != nil {
		return toHTTPError(err)
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("%s/concerts/%d", h.basePath, created.ID))
	return api.Respond(c, http.StatusCreated, toConcertResponse(created))
}

// GetByID godoc
// @Summary コンサートを取得
// @Tags concerts
// @Produce json,xml
// @Param id path int true "コンサートID"
// @Success 200 {object} ConcertResponse
// @Failure 404 {object} map[string]string
// @Router /concerts/{id} [get]
func (h *ConcertHandler) GetByID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	con, err := h.service.GetConcert(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return api.Respond(c, http.StatusOK, toConcertResponse(con))
}

// List godoc
// @Summary コンサート一覧を取得
// @Description start のIDを起点に最大 size 件を返します。start が見つからなければ先頭から返します
// @Tags concerts
// @Produce json,xml
// @Param start query int false "起点となるコンサートID" default(0)
// @Param size query int false "最大件数" default(20)
// @Success 200 {array} ConcertResponse
// @Failure 400 {object} map[string]string
// @Router /concerts [get]
func (h *ConcertHandler) List(c echo.Context) error {
	start, err := queryInt64(c, "start", 0)
	if err != nil {
		return err
	}
	size, err := queryInt64(c, "size", int64(h.defaultPageSize))
	if err != nil {
		return err
	}

	concerts, err := h.service.ListConcerts(c.Request().Context(), start, int(size))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]ConcertResponse, len(concerts))
	for i, con := range concerts {
		responses[i] = toConcertResponse(con)
	}
	if api.PrefersXML(c.Request()) {
		return c.XML(http.StatusOK, ConcertListResponse{Concerts: responses})
	}
	return c.JSON(http.StatusOK, responses)
}

// Update godoc
// @Summary コンサートを更新
// @Description タイトルと日時を丸ごと置き換えます
// @Tags concerts
// @Accept json,xml
// @Param id path int true "コンサートID"
// @Param request body ConcertRequest true "コンサート情報"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /concerts/{id} [put]
func (h *ConcertHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	input, err := h.bindConcert(c)
	if err != nil {
		return err
	}

	_, err = h.service.UpdateConcert(c.Request().Context(), application.UpdateConcertInput{
		ID:    id,
		Title: input.Title,
		Date:  input.Date,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete godoc
// @Summary コンサートを削除
// @Tags concerts
// @Param id path int true "コンサートID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /concerts/{id} [delete]
func (h *ConcertHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteConcert(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll godoc
// @Summary 全コンサートを削除
// @Description 全件削除してIDの採番をリセットします
// @Tags concerts
// @Success 204
// @Router /concerts [delete]
func (h *ConcertHandler) DeleteAll(c echo.Context) error {
	if err := h.service.DeleteAllConcerts(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type concertInput struct {
	Title string
	Date  time.Time
}

func (h *ConcertHandler) bindConcert(c echo.Context) (*concertInput, error) {
	var req ConcertRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "日時の形式が不正です（RFC3339）")
	}
	return &concertInput{Title: req.Title, Date: date}, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "IDが不正です")
	}
	return id, nil
}

func queryInt64(c echo.Context, name string, def int64) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s は0以上の整数で指定してください", name))
	}
	return v, nil
}

// toHTTPError はドメインエラーをHTTPエラーに変換する
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, concert.ErrConcertNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "コンサートが見つかりません")
	case errors.Is(err, concert.ErrTitleRequired),
		errors.Is(err, concert.ErrDateRequired),
		errors.Is(err, concert.ErrInvalidPage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
	}
}
