package domain

// Camada de domínio do throttle de atualização de merchant.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type MerchantID string

// Policy agrupa os limites avaliados a cada chamada do gate.
//
// Todas as comparações de idade são estritas (idade < janela).
type Policy struct {
	// Retention: entradas com idade >= Retention são descartadas na leitura.
	Retention time.Duration
	// WeeklyLimit: máximo de tentativas retidas (janela de Retention).
	WeeklyLimit int
	DailyWindow time.Duration
	DailyLimit  int
	// Cooldown: tempo mínimo desde a última tentativa.
	Cooldown time.Duration
	// InProgressWindow é o sinal mais grosso de "tem algo acontecendo agora".
	InProgressWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Retention:        7 * 24 * time.Hour,
		WeeklyLimit:      5,
		DailyWindow:      24 * time.Hour,
		DailyLimit:       2,
		Cooldown:         5 * time.Minute,
		InProgressWindow: 10 * time.Minute,
	}
}

// WithDefaults preenche campos zerados com os valores de DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Retention <= 0 {
		p.Retention = d.Retention
	}
	if p.WeeklyLimit <= 0 {
		p.WeeklyLimit = d.WeeklyLimit
	}
	if p.DailyWindow <= 0 {
		p.DailyWindow = d.DailyWindow
	}
	if p.DailyLimit <= 0 {
		p.DailyLimit = d.DailyLimit
	}
	if p.Cooldown <= 0 {
		p.Cooldown = d.Cooldown
	}
	if p.InProgressWindow <= 0 {
		p.InProgressWindow = d.InProgressWindow
	}
	return p
}

// Reason identifica qual condição bloqueou a atualização.
type Reason string

const (
	ReasonNone      Reason = "none"
	ReasonCooldown  Reason = "cooldown"
	ReasonDailyCap  Reason = "daily_cap"
	ReasonWeeklyCap Reason = "weekly_cap"
	// ReasonClientRate: o cliente excedeu o ritmo de requisições, antes de
	// chegar no gate.
	ReasonClientRate Reason = "client_rate"
)

type Decision struct {
	Allowed bool
	Reason  Reason
	// RetryAfter é quanto falta para a condição que bloqueou deixar de valer.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
