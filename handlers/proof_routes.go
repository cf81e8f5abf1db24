// handlers/proof_routes.go
package handlers

import (
	"fmt"
	"log"
	"strconv"

	"defi-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusForKind maps an orchestration error kind to an HTTP status. Caller
// mistakes stay in the 4xx range; anything infrastructural is a 500.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.ErrInvalidInput,
		services.ErrInvalidQuestState,
		services.ErrQuestExpired,
		services.ErrNotAccepted,
		services.ErrAlreadyCompleted,
		services.ErrVerificationFailed:
		return fiber.StatusBadRequest
	case services.ErrParticipantMismatch:
		return fiber.StatusForbidden
	case services.ErrQuestNotFound:
		return fiber.StatusNotFound
	case services.ErrDuplicateSubmission:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func renderCompletionError(c *fiber.Ctx, err error) error {
	pe := services.AsProofError(err)
	status := statusForKind(pe.Kind)

	if status == fiber.StatusInternalServerError {
		// Full detail goes to the log, not the caller.
		log.Printf("❌ [PROOF] submission failed (%s): %v", pe.Kind, err)
		return c.Status(status).JSON(fiber.Map{
			"message": "Unexpected error processing submission",
			"kind":    string(pe.Kind),
		})
	}

	body := fiber.Map{
		"message": pe.Message,
		"kind":    string(pe.Kind),
	}
	if pe.Detail != "" {
		body["detail"] = pe.Detail
	}
	return c.Status(status).JSON(body)
}

func SetupProofRoutes(app *fiber.App, completion *services.CompletionService) {
	app.Post("/quests/:id/submit-proof", func(c *fiber.Ctx) error {
		questID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || questID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid quest ID",
				"kind":    string(services.ErrInvalidInput),
			})
		}

		var req struct {
			TransactionHash string `json:"transactionHash"`
			Participant     string `json:"participant"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"kind":    string(services.ErrInvalidInput),
			})
		}

		result, err := completion.SubmitProof(c.Context(), questID, req.TransactionHash, req.Participant)
		if err != nil {
			return renderCompletionError(c, err)
		}

		log.Printf("✅ [PROOF] quest %d completed by %s (tx %s)", questID, result.Participant, result.CompletionTxHash)
		verification := fiber.Map{
			"transactionHash": req.TransactionHash,
			"valid":           true,
		}
		if result.Verification != nil {
			verification["mirrorNodeTx"] = result.Verification.Transaction
		}
		return c.JSON(fiber.Map{
			"message":         "Quest completed successfully",
			"questId":         fmt.Sprintf("%d", result.QuestID),
			"participant":     result.Participant,
			"transactionHash": result.CompletionTxHash,
			"xpAwarded":       result.XPAwarded,
			"verification":    verification,
		})
	})
}
