package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/discovery/internal/pkg/errcode"
)

// apiError carries an errcode through proxyutil's {code, msg, data} envelope.
type apiError struct {
	code uint32
	msg  string
}

func (e apiError) Error() string { return e.msg }

func (e apiError) Code() uint32 { return e.code }

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, apiError{code: uint32(code), msg: message})
}

// Invalid reports a malformed request body or parameter.
func Invalid(c *gin.Context, message string) {
	if message == "" {
		message = "invalid request"
	}
	Error(c, errcode.ErrInvalid, message)
}
