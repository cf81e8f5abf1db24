// middleware/address.go
package middleware

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// WalletAddressParam validates the :address route parameter and stores the
// lowercase form in Locals("wallet_address") for handlers.
func WalletAddressParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := c.Params("address")
		if !common.IsHexAddress(address) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid wallet address",
			})
		}
		c.Locals("wallet_address", strings.ToLower(address))
		return c.Next()
	}
}
