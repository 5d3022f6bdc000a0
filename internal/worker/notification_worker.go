package worker

import (
	"github.com/fixmypidge/case-service/internal/service"
)

// StartNotificationWorker registers outbound notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
