// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/xflow/partner"
)

// shippingPartner answers the shipping operations of the order process
type shippingPartner struct {
	sync.Mutex
	calls map[string][]string
}

func newShippingPartner() *shippingPartner {
	return &shippingPartner{calls: map[string][]string{}}
}

func (s *shippingPartner) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.POST("/shipping/:operation", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		instanceId := c.GetHeader(partner.HeaderInstanceId)
		s.Lock()
		s.calls[instanceId] = append(s.calls[instanceId], c.Param("operation"))
		s.Unlock()

		switch c.Param("operation") {
		case "ship":
			c.JSON(http.StatusOK, gin.H{"trackingId": "T-" + instanceId, "order": json.RawMessage(body)})
		case "cancel":
			c.JSON(http.StatusOK, gin.H{"cancelled": true})
		default:
			c.Status(http.StatusNotFound)
		}
	})
	return r
}

func (s *shippingPartner) callsOf(instanceId string) []string {
	s.Lock()
	defer s.Unlock()
	return append([]string(nil), s.calls[instanceId]...)
}
