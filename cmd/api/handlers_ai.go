package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/examprep/internal/middleware"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// flowFunc runs one AI tool and reports whether the result came from cache
type flowFunc func(ctx context.Context) (interface{}, bool, error)

// runTool charges one quota unit, runs the flow and gives the unit back when the flow fails
func (api *API) runTool(c *gin.Context, tool string, flow flowFunc) {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(c)
	logger := api.logger.WithUserID(userID).WithTool(tool)

	profile, err := api.quota.Reserve(ctx, userID)
	if err != nil {
		if profile != nil {
			logger.LogQuotaEvent(userID, "exhausted", profile.DailyRemainingQuota, nil)
		}
		respondError(c, err)
		return
	}

	result, cached, err := flow(ctx)
	if err != nil {
		// The request context may already be cancelled
		if _, rerr := api.quota.RefundQuota(context.WithoutCancel(ctx), userID); rerr != nil {
			logger.WithError(rerr).Error("Failed to refund quota")
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToolResult{
		Tool:           tool,
		Result:         result,
		RemainingQuota: profile.DailyRemainingQuota,
		Cached:         cached,
	})
}

func (api *API) summarize(c *gin.Context) {
	var req models.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	api.runTool(c, models.ToolSummarize, func(ctx context.Context) (interface{}, bool, error) {
		out, err := api.ai.Summarize(ctx, req)
		return out, false, err
	})
}

func (api *API) solve(c *gin.Context) {
	var req models.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	api.runTool(c, models.ToolSolve, func(ctx context.Context) (interface{}, bool, error) {
		out, err := api.ai.Solve(ctx, req)
		return out, false, err
	})
}

func (api *API) explain(c *gin.Context) {
	var req models.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	api.runTool(c, models.ToolExplain, func(ctx context.Context) (interface{}, bool, error) {
		return api.ai.Explain(ctx, req)
	})
}

func (api *API) flashcards(c *gin.Context) {
	var req models.FlashcardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	api.runTool(c, models.ToolFlashcards, func(ctx context.Context) (interface{}, bool, error) {
		out, err := api.ai.Flashcards(ctx, req)
		return out, false, err
	})
}

func (api *API) generateTest(c *gin.Context) {
	var req models.TestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	api.runTool(c, models.ToolTest, func(ctx context.Context) (interface{}, bool, error) {
		out, err := api.ai.GenerateTest(ctx, req)
		return out, false, err
	})
}

// renderTestPDF prints an already generated test. It does not consume quota.
func (api *API) renderTestPDF(c *gin.Context) {
	var req models.RenderTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Test.Questions) == 0 {
		badRequest(c, fmt.Errorf("test has no questions"))
		return
	}

	userID, _ := middleware.GetUserID(c)
	ctx := c.Request.Context()

	pdf, err := api.renderer.RenderTest(ctx, &req.Test, req.WithAnswers)
	if err != nil {
		respondError(c, fmt.Errorf("failed to render test: %w", err))
		return
	}

	key, url, err := api.docs.StoreRenderedTest(ctx, userID, pdf)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":  key,
		"url":  url,
		"size": len(pdf),
	})
}

// uploadDocument archives a PDF the client is about to summarize
func (api *API) uploadDocument(c *gin.Context) {
	file, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No document provided"})
		return
	}

	if file.Size > api.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document is too large"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF documents are accepted"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read document"})
		return
	}
	defer src.Close()

	userID, _ := middleware.GetUserID(c)
	doc, err := api.docs.StoreDocument(c.Request.Context(), userID, file.Filename, src, file.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (api *API) listDocuments(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	docs, err := api.docs.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (api *API) deleteDocument(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := api.docs.DeleteDocument(c.Request.Context(), userID, c.Param("name")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
