package middleware

import (
	"errors"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)

			seg.Lock()
			seg.GetHTTP().GetRequest().Method = req.Method
			seg.GetHTTP().GetRequest().URL = req.URL.Path
			seg.GetHTTP().GetRequest().UserAgent = req.UserAgent()
			seg.Unlock()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			seg.Lock()
			seg.GetHTTP().GetResponse().Status = status
			switch {
			case status == http.StatusTooManyRequests:
				seg.Throttle = true
			case status >= 500:
				seg.Fault = true
			case status >= 400:
				seg.Error = true
			}
			seg.Unlock()
			seg.Close(nil)
			return err
		}
	}
}
