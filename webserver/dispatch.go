package webserver

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/files"
	"github.com/hearthweb/hearth/internal/logging"
	"github.com/hearthweb/hearth/internal/mimetype"
)

// dispatch executes a matched route. It never returns nil; every
// failure mode maps to a status-only response.
func dispatch(route *Route, req *Request) *Response {
	switch route.Kind {
	case RouteStatic:
		return dispatchStatic(route, req)
	case RouteFile:
		resp := NewResponse(route.Status)
		resp.SetBody(route.Content)
		return resp
	case RouteCustom:
		return dispatchCustom(route, req)
	case RouteError:
		resp := NewResponse(route.Status)
		resp.SetBody(route.Content)
		return resp
	case RouteProxy:
		return fetchProxy(route.External, route.Path, req)
	}
	return NewResponse(StatusInternalServerError)
}

// dispatchStatic resolves the path remainder beyond the route prefix to
// a file inside the route's folder. A missing or empty file is a 404;
// the content type is inferred from the file extension.
func dispatchStatic(route *Route, req *Request) *Response {
	remainder := strings.TrimPrefix(req.PathOnly(), route.Path)
	path, ok := files.Resolve(route.Folder, remainder)
	if !ok {
		return NewResponse(StatusNotFound)
	}

	content, found := files.Load(path)
	if !found || len(content) == 0 {
		return NewResponse(StatusNotFound)
	}

	resp := NewResponse(StatusOK)
	resp.SetBody(content)
	resp.SetContentType(mimetype.ByPath(path))
	return resp
}

// dispatchCustom invokes the registered handler inside a fault
// boundary: a panic becomes a 500 instead of tearing down the worker.
// Only this invocation point is guarded, so programming errors
// elsewhere still surface.
func dispatchCustom(route *Route, req *Request) (resp *Response) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error("Handler panic",
				zap.String("path", route.Path),
				zap.String("domain", route.Domain.Name),
				zap.Any("panic", p),
			)
			resp = NewResponse(StatusInternalServerError)
		}
	}()

	resp = route.Handler(req, route.Domain)
	if resp == nil {
		resp = NewResponse(StatusInternalServerError)
	}
	return resp
}
