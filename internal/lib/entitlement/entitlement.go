// Package entitlement содержит единственный предикат доступа к платному контенту.
//
// IsActive — чистая функция без побочных эффектов и без обращений к внешним
// системам. Все проверки доступа к премиум-урокам проходят только через неё,
// и всегда на свежезагруженном снимке подписки.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/lesson-platform/internal/models"
)

// IsActive сообщает, дает ли снимок подписки право на платный контент
// в момент now. Право есть только при статусе active и неистекшем
// оплаченном периоде.
func IsActive(snapshot models.SubscriptionSnapshot, now time.Time) bool {
	if snapshot.Status != models.SubscriptionStatusActive {
		return false
	}
	if snapshot.CurrentPeriodEnd == nil {
		return false
	}
	return snapshot.CurrentPeriodEnd.After(now)
}
