package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kotoba-school/kotoba/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Common response envelopes.
type (
	DataResponse struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}

	MessageResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	ErrorResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
)

func dataResponse(data interface{}) DataResponse {
	return DataResponse{Success: true, Data: data}
}

func messageResponse(msg string) MessageResponse {
	return MessageResponse{Success: true, Message: msg}
}

func errorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
