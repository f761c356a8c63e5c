package util

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// BindBody decodes the JSON request body into a T.
func BindBody[T any](c *gin.Context) (T, error) {
	var body T
	err := c.ShouldBindJSON(&body)

	return body, err
}

// BindQuery decodes the query string into a T using its form tags.
func BindQuery[T any](c *gin.Context) (T, error) {
	var query T
	err := c.ShouldBindQuery(&query)

	return query, err
}

// ParamID reads a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}

	return id, nil
}
