package app

// Built-in modules register themselves with core on import.
import (
	_ "github.com/flemzord/threadline/internal/gateway"
	_ "github.com/flemzord/threadline/modules/backend/openai"
	_ "github.com/flemzord/threadline/modules/store/redis"
	_ "github.com/flemzord/threadline/modules/store/sqlite"
)
