package main

// @title           Tollgate API
// @version         1.0
// @description     Paid membership engine for Telegram groups and channels.
// @termsOfService  http://example.com/terms/

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8888
// @BasePath  /

// @securityDefinitions.apikey  AdminBearer
// @in                          header
// @name                        Authorization
// @description                 HS256 JWT as "Bearer <token>"

import (
	"os"

	"github.com/fatflowers/tollgate/internal/app"
)

func main() {
	os.Exit(app.Run("api", app.Module))
}
