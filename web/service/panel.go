package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/database/model"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/monitor"
	"github.com/xui-tools/xui-bot/xui"

	"go.uber.org/atomic"
)

// StatusNotifier delivers a status-change message to a chat. The panel
// service never sends anything itself.
type StatusNotifier interface {
	NotifyStatus(tgId int64, kind monitor.NotificationKind, status monitor.UserStatus)
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Fetched   int           `json:"fetched"`
	Succeeded int64         `json:"succeeded"`
	Failed    int64         `json:"failed"`
	Notified  int64         `json:"notified"`
}

// PanelService drives the fetch-reconcile-notify pipeline against the
// panel and keeps subscriptions in the database current.
type PanelService struct {
	settingService SettingService

	sessions *xui.SessionManager
	client   *xui.Client
	gate     monitor.Gate
	workers  int

	notifierMu sync.RWMutex
	notifier   StatusNotifier

	statsMu   sync.RWMutex
	lastStats *CycleStats
}

func NewPanelService() *PanelService {
	creds := xui.Credentials{
		BaseURL:  config.GetPanelURL(),
		Username: config.GetPanelUsername(),
		Password: config.GetPanelPassword(),
	}
	policy := xui.DefaultRetryPolicy(config.GetMaxRetries())
	sessions := xui.NewSessionManager(creds, config.GetAPITimeout(), policy)

	return &PanelService{
		sessions: sessions,
		client:   xui.NewClient(creds, sessions, policy, config.GetPageSize()),
		workers:  config.GetWorkerCount(),
	}
}

// SetNotifier wires the message dispatcher in after the bot started.
func (p *PanelService) SetNotifier(n StatusNotifier) {
	p.notifierMu.Lock()
	defer p.notifierMu.Unlock()
	p.notifier = n
}

func (p *PanelService) getNotifier() StatusNotifier {
	p.notifierMu.RLock()
	defer p.notifierMu.RUnlock()
	return p.notifier
}

// LastStats returns the most recent completed cycle's summary.
func (p *PanelService) LastStats() *CycleStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.lastStats
}

// SyncAll runs one full poll cycle: fetch every record, reconcile each
// against stored state in a bounded worker pool, dispatch gate-approved
// notifications and persist the new snapshots. Individual record
// failures are counted, never fatal to the batch.
func (p *PanelService) SyncAll(ctx context.Context) (*CycleStats, error) {
	start := time.Now()

	records, err := p.client.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	notificationsEnabled, err := p.settingService.GetNotificationsEnabled()
	if err != nil {
		logger.Warning("read notificationsEnabled failed:", err)
		notificationsEnabled = true
	}

	var (
		succeeded atomic.Int64
		failed    atomic.Int64
		notified  atomic.Int64
	)

	jobs := make(chan xui.RawClientRecord)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := p.processRecord(start, rec, notificationsEnabled, &notified); err != nil {
					failed.Inc()
					logger.Warningf("reconcile client %s failed: %v", rec.ClientID, err)
				} else {
					succeeded.Inc()
				}
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats := &CycleStats{
		StartedAt: start,
		Duration:  time.Since(start),
		Fetched:   len(records),
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
		Notified:  notified.Load(),
	}

	p.statsMu.Lock()
	p.lastStats = stats
	p.statsMu.Unlock()

	return stats, ctx.Err()
}

func (p *PanelService) processRecord(now time.Time, rec xui.RawClientRecord, notificationsEnabled bool, notified *atomic.Int64) error {
	db := database.GetDB()

	var stored model.Subscription
	err := db.Where("client_id = ?", rec.ClientID).First(&stored).Error
	if database.IsNotFound(err) {
		stored = model.Subscription{ClientId: rec.ClientID}
	} else if err != nil {
		return err
	}

	previous := monitor.UserStatus{
		ClientID: stored.ClientId,
		State:    monitor.State(stored.LastState),
	}

	status, err := monitor.Reconcile(now, rec, stored)
	if err != nil {
		return err
	}

	if kind, ok := p.gate.Evaluate(previous, status, monitor.State(stored.LastNotifiedState)); ok {
		if notificationsEnabled && stored.TgId != 0 {
			if n := p.getNotifier(); n != nil {
				n.NotifyStatus(stored.TgId, kind, status)
				notified.Inc()
			}
		}
		// Recorded even when nobody was reachable, so a transition is
		// announced at most once.
		stored.LastNotifiedState = string(status.State)
	}

	status.ApplyTo(&stored, rec.RawTotal(), now)
	return db.Save(&stored).Error
}

// OnlineEmails asks the panel which clients are connected right now.
func (p *PanelService) OnlineEmails(ctx context.Context) ([]string, error) {
	return p.client.FetchOnlines(ctx)
}

// GetSubscription resolves an identifier the way users type it: a
// client UUID or an email.
func (p *PanelService) GetSubscription(identifier string) (*model.Subscription, error) {
	db := database.GetDB()
	var sub model.Subscription

	if _, err := uuid.Parse(identifier); err == nil {
		err = db.Where("client_id = ?", identifier).First(&sub).Error
		if err != nil {
			return nil, err
		}
		return &sub, nil
	}

	err := db.Where("email = ?", identifier).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (p *PanelService) GetSubscriptionsByTgId(tgId int64) ([]model.Subscription, error) {
	db := database.GetDB()
	var subs []model.Subscription
	err := db.Where("tg_id = ?", tgId).Find(&subs).Error
	return subs, err
}

// LinkTelegram attaches a chat to a subscription so the owner receives
// status notifications.
func (p *PanelService) LinkTelegram(identifier string, tgId int64) error {
	sub, err := p.GetSubscription(identifier)
	if err != nil {
		return err
	}
	sub.TgId = tgId
	return database.GetDB().Save(sub).Error
}

// CountStates groups stored subscriptions by their last derived state.
func (p *PanelService) CountStates() (map[string]int64, error) {
	db := database.GetDB()
	rows := []struct {
		LastState string
		N         int64
	}{}
	err := db.Model(&model.Subscription{}).
		Select("last_state, count(*) as n").
		Group("last_state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.LastState] = row.N
	}
	return counts, nil
}

// SubscriptionURL builds the panel's subscription link for a client.
func (p *PanelService) SubscriptionURL(sub *model.Subscription) string {
	return config.GetPanelURL() + "/sub/" + sub.Email + "/" + sub.ClientId
}
