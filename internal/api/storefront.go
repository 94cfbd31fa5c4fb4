package api

import (
	"net/http"

	"forest-fashion/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createContact(c *gin.Context) {
	var in service.ContactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if _, err := h.svc.Contacts.Create(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent successfully"})
}

func (h *Handler) listContacts(c *gin.Context) {
	contacts, err := h.svc.Contacts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) updateContactStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	contact, err := h.svc.Contacts.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

type newsletterRequest struct {
	Email string `json:"email"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.svc.Contacts.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result == service.Reactivated {
		c.JSON(http.StatusOK, gin.H{"message": "Subscription reactivated"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Successfully subscribed to newsletter"})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.svc.Contacts.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully unsubscribed"})
}

func (h *Handler) whatsAppOrder(c *gin.Context) {
	var req service.WhatsAppOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	order, err := h.svc.WhatsApp.Prepare(c.Request.Context(), callerOf(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "WhatsApp order prepared successfully",
		"whatsappUrl":  order.WhatsAppURL,
		"customerInfo": order.CustomerInfo,
	})
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.svc.Stats.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
