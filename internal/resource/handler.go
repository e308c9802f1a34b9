package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"zamanyonet-admin/pkg/logger"
)

func init() {
	// Unknown body fields are a client error, not something to drop silently.
	binding.EnableDecoderDisallowUnknownFields = true
}

// Handler exposes the CRUD routes of one resource kind.
// Keep it thin: decode, hand to the gateway, present.
type Handler[T any] struct {
	def *Definition[T]
	gw  Gateway[T]
}

func NewHandler[T any](def *Definition[T], gw Gateway[T]) *Handler[T] {
	return &Handler[T]{def: def, gw: gw}
}

// Register mounts the routes under /<kind>. Middleware such as session and
// role checks run before any handler.
func (h *Handler[T]) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	g := r.Group("/"+h.def.Kind, mw...)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
}

type listResponse struct {
	Items    []any `json:"items"`
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func (h *Handler[T]) List(c *gin.Context) {
	q, err := h.parseQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	recs, total, err := h.gw.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	q = q.Normalize()
	items := make([]any, 0, len(recs))
	for i := range recs {
		items = append(items, h.def.present(&recs[i]))
	}
	c.JSON(http.StatusOK, listResponse{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize})
}

func (h *Handler[T]) parseQuery(c *gin.Context) (Query, error) {
	q := Query{Filters: map[string]string{}}
	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return Query{}, err
	}
	if q.PageSize, err = intParam(c, "pageSize"); err != nil {
		return Query{}, err
	}
	for param, field := range h.def.Filters {
		if v := strings.TrimSpace(c.Query(param)); v != "" {
			if h.def.FilterValue != nil {
				v = h.def.FilterValue(field, v)
			}
			q.Filters[field] = v
		}
	}
	return q, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, Invalid(name, "must be a positive integer")
	}
	return n, nil
}

func (h *Handler[T]) Get(c *gin.Context) {
	rec, err := h.gw.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.def.present(&rec))
}

func (h *Handler[T]) Create(c *gin.Context) {
	var rec T
	if err := c.ShouldBindJSON(&rec); err != nil {
		h.fail(c, bindError(err))
		return
	}
	created, err := h.gw.Create(c.Request.Context(), rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.def.presentCreated(&created))
}

// Replace is PUT: the body is the complete new client-writable state.
// The body is decoded only once the record is known to exist, so a missing
// id is a 404 whatever the body holds.
func (h *Handler[T]) Replace(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, Invalid("", "unreadable body"))
		return
	}
	_, next, err := h.gw.Update(c.Request.Context(), c.Param("id"), func(T) (T, error) {
		return decodeStrict[T](raw)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.def.present(&next))
}

// Patch is a JSON merge patch (RFC 7386) applied to the stored document.
func (h *Handler[T]) Patch(c *gin.Context) {
	patch, err := c.GetRawData()
	if err != nil {
		h.fail(c, Invalid("", "unreadable body"))
		return
	}
	_, next, err := h.gw.Update(c.Request.Context(), c.Param("id"), func(old T) (T, error) {
		return applyPatch(old, patch)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.def.present(&next))
}

func applyPatch[T any](old T, patch []byte) (T, error) {
	var zero T
	doc, err := json.Marshal(&old)
	if err != nil {
		return zero, err
	}
	merged, err := MergePatch(doc, patch)
	if err != nil {
		return zero, err
	}
	return decodeStrict[T](merged)
}

// decodeStrict decodes a JSON object into T, rejecting unknown fields, and
// runs the binding validator the way ShouldBindJSON does.
func decodeStrict[T any](body []byte) (T, error) {
	var zero, next T
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return zero, Invalid("", "invalid body: %v", err)
	}
	if binding.Validator != nil {
		if err := binding.Validator.ValidateStruct(&next); err != nil {
			return zero, bindError(err)
		}
	}
	return next, nil
}

func (h *Handler[T]) Delete(c *gin.Context) {
	if _, err := h.gw.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.def.Label + " deleted successfully"})
}

// fail maps gateway and validation errors onto the client contract. Anything
// unrecognised is logged and reported as a generic 500.
func (h *Handler[T]) fail(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": h.def.notFound()})
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": h.def.Label + " already exists"})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("resource request failed", "resource", h.def.Kind, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bindError turns decoder and validator failures into a ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			return Invalid(field, "is required")
		case "oneof":
			return Invalid(field, "must be one of %s", fe.Param())
		case "email":
			return Invalid(field, "must be a valid email")
		default:
			return Invalid(field, "failed %s validation", fe.Tag())
		}
	}
	return Invalid("", "invalid body: %v", err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// MergePatch applies an RFC 7386 merge patch to doc. Both must be JSON
// objects.
func MergePatch(doc, patch []byte) ([]byte, error) {
	var target map[string]any
	if err := decodeNumbers(doc, &target); err != nil {
		return nil, fmt.Errorf("merge patch: document: %w", err)
	}
	var p any
	if err := decodeNumbers(patch, &p); err != nil {
		return nil, Invalid("", "invalid body: %v", err)
	}
	obj, ok := p.(map[string]any)
	if !ok {
		return nil, Invalid("", "patch body must be a JSON object")
	}
	return json.Marshal(mergeObject(target, obj))
}

// decodeNumbers keeps numbers as json.Number so money amounts survive the
// round trip without float rounding.
func decodeNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func mergeObject(target, patch map[string]any) map[string]any {
	if target == nil {
		target = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(target, k)
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			existing, _ := target[k].(map[string]any)
			target[k] = mergeObject(existing, sub)
			continue
		}
		target[k] = v
	}
	return target
}
