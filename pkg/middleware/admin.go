package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WalletHeader carries the connected wallet address of a dashboard user.
const WalletHeader = "X-Wallet-Address"

// WalletContextKey holds the admitted wallet in the gin context.
const WalletContextKey = "wallet"

// AdminChecker reports whether a wallet may see the dashboard.
type AdminChecker interface {
	IsAdmin(wallet string) bool
}

// AdminWallets rejects requests whose wallet header is not on the allow-list.
func AdminWallets(admins AdminChecker, log *zap.Logger) gin.HandlerFunc {
	return adminGate(admins, log, false)
}

// AdminWalletsForStream also accepts the wallet as a ?wallet= query
// parameter. Browser EventSource cannot set request headers, so only the
// SSE route should use it.
func AdminWalletsForStream(admins AdminChecker, log *zap.Logger) gin.HandlerFunc {
	return adminGate(admins, log, true)
}

func adminGate(admins AdminChecker, log *zap.Logger, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetHeader(WalletHeader)
		if wallet == "" && allowQuery {
			wallet = c.Query("wallet")
		}
		if wallet == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Connect your wallet"})
			return
		}
		if !admins.IsAdmin(wallet) {
			log.Warn("Dashboard access denied", zap.String("wallet", wallet))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
			return
		}
		c.Set(WalletContextKey, wallet)
		c.Next()
	}
}
