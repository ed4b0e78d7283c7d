package handler

import (
	"bytes"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// bindParams decodes the JSON body into obj. Parameters may be sent flat or
// nested under a "user" key.
func bindParams(c *gin.Context, obj any) error {
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := c.ShouldBindBodyWith(&wrapped, binding.JSON); err != nil {
		return err
	}

	if nested := bytes.TrimSpace(wrapped.User); len(nested) > 0 && nested[0] == '{' {
		return json.Unmarshal(nested, obj)
	}
	return c.ShouldBindBodyWith(obj, binding.JSON)
}
