package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/interfaces/rest/handler"
)

type endpoint struct {
	apiVersion  string
	middlewares []echo.MiddlewareFunc
	groups      []*apiGroup
}

// apiGroup routes under one prefix; a group with a mode binds it for every
// route it holds
type apiGroup struct {
	prefix      string
	mode        *hierarchy.Mode
	middlewares []echo.MiddlewareFunc
	routes      []*route
}

// route either a plain handler or a stream served over a websocket
type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	stream  infra.WSHandler
}

var routeMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

func bindMode(mode hierarchy.Mode) *hierarchy.Mode {
	return &mode
}

func get(path string, h echo.HandlerFunc) *route    { return &route{method: http.MethodGet, path: path, handler: h} }
func post(path string, h echo.HandlerFunc) *route   { return &route{method: http.MethodPost, path: path, handler: h} }
func put(path string, h echo.HandlerFunc) *route    { return &route{method: http.MethodPut, path: path, handler: h} }
func patch(path string, h echo.HandlerFunc) *route  { return &route{method: http.MethodPatch, path: path, handler: h} }
func remove(path string, h echo.HandlerFunc) *route { return &route{method: http.MethodDelete, path: path, handler: h} }
func stream(path string, h infra.WSHandler) *route  { return &route{method: http.MethodGet, path: path, stream: h} }

func createEndpoint(app *echo.Echo, def *endpoint) {
	root := app.Group("/"+strings.TrimPrefix(def.apiVersion, "/"), def.middlewares...)

	for _, group := range def.groups {
		middlewares := group.middlewares
		if group.mode != nil {
			middlewares = append([]echo.MiddlewareFunc{handler.WithMode(*group.mode)}, middlewares...)
		}
		echoGroup := root.Group(group.prefix, middlewares...)
		for _, api := range group.routes {
			echoGroup.Add(api.method, api.path, api.resolve())
		}
	}
}

func (r *route) resolve() echo.HandlerFunc {
	if !routeMethods[r.method] {
		panic(fmt.Errorf("createEndpoint: unknown method %s", r.method))
	}
	if r.stream == nil {
		return r.handler
	}
	if r.method != http.MethodGet {
		panic(fmt.Errorf("createEndpoint: stream %s must be served over GET", r.path))
	}
	return infra.WithHeartbeat(r.stream)
}
