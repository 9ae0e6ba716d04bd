package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/domain"
)

var ErrNoStorage = errors.New("throttle: no storage configured")

// Gate decide se um merchant pode disparar uma nova atualização, com base no
// histórico de tentativas persistido em Storage.
//
// Não guarda estado próprio: toda chamada relê o histórico. O estado vive
// inteiro no storage, sob a chave "uh_" + merchantID.
//
// Concorrência: duas instâncias gravando o mesmo merchant ao mesmo tempo
// podem perder uma entrada (last write wins).
type Gate struct {
	Storage domain.KeyValueStore
	Policy  domain.Policy
	// Now permite fixar o relógio em testes. Se nil, usa time.Now.
	Now    func() time.Time
	Logger *logrus.Entry
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) policy() domain.Policy { return g.Policy.WithDefaults() }

func (g *Gate) log() *logrus.Entry {
	if g.Logger != nil {
		return g.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// History retorna as tentativas retidas (idade < Retention).
//
// Nunca retorna erro: chave ausente, falha de leitura, base64 ou JSON
// inválidos viram histórico vazio. Não reescreve o storage.
func (g *Gate) History(ctx context.Context, id domain.MerchantID) []time.Time {
	return g.retained(ctx, id, g.now())
}

func (g *Gate) retained(ctx context.Context, id domain.MerchantID, now time.Time) []time.Time {
	raw, err := g.load(ctx, id)
	if err != nil {
		g.log().WithError(err).WithField("merchant", id).Warn("reading merchant update history, treating as empty")
		return nil
	}

	retention := g.policy().Retention
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, ok := ParseTimestamp(s)
		if !ok {
			continue
		}
		if now.Sub(t) < retention {
			out = append(out, t)
		}
	}
	return out
}

func (g *Gate) load(ctx context.Context, id domain.MerchantID) ([]string, error) {
	if g.Storage == nil {
		return nil, nil
	}
	key := HistoryKey(id)
	value, ok, err := g.Storage.GetItem(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	entries, err := DecodeHistory(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return entries, nil
}

// Record acrescenta "agora" ao histórico e grava de volta.
//
// As entradas expiradas somem nessa regravação. Falha de escrita é
// devolvida para quem chamou.
func (g *Gate) Record(ctx context.Context, id domain.MerchantID) error {
	if g.Storage == nil {
		return ErrNoStorage
	}
	now := g.now().UTC().Truncate(time.Second)

	entries := append(g.retained(ctx, id, now), now)
	value, err := EncodeHistory(entries)
	if err != nil {
		return err
	}

	key := HistoryKey(id)
	if err := g.Storage.SetItem(ctx, key, value); err != nil {
		g.log().WithError(err).WithField("merchant", id).Error("recording merchant update")
		return fmt.Errorf("recording merchant update %s: %w", key, err)
	}
	g.log().WithFields(logrus.Fields{
		"merchant": id,
		"entries":  len(entries),
	}).Debug("merchant update recorded")
	return nil
}

// Forget remove o histórico inteiro do merchant.
func (g *Gate) Forget(ctx context.Context, id domain.MerchantID) error {
	if g.Storage == nil {
		return ErrNoStorage
	}
	key := HistoryKey(id)
	if err := g.Storage.RemoveItem(ctx, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// CanUpdate é true só se as três condições valem ao mesmo tempo:
//  1. menos de WeeklyLimit entradas retidas
//  2. menos de DailyLimit entradas com idade < DailyWindow
//  3. nenhuma entrada com idade < Cooldown
//
// Erro de leitura => true (fail-open).
func (g *Gate) CanUpdate(ctx context.Context, id domain.MerchantID) bool {
	return g.Evaluate(ctx, id).Allowed
}

// InProgress é true se alguma entrada retida tem idade < InProgressWindow.
func (g *Gate) InProgress(ctx context.Context, id domain.MerchantID) bool {
	now := g.now()
	window := g.policy().InProgressWindow
	for _, t := range g.retained(ctx, id, now) {
		if now.Sub(t) < window {
			return true
		}
	}
	return false
}

// Evaluate devolve a mesma resposta de CanUpdate, junto com a primeira
// condição que falhou (cooldown, diária, semanal) e quanto tempo falta para
// todas as condições que falharam deixarem de valer.
func (g *Gate) Evaluate(ctx context.Context, id domain.MerchantID) domain.Decision {
	now := g.now()
	p := g.policy()

	var weekly, daily, cooling []time.Duration
	for _, t := range g.retained(ctx, id, now) {
		age := now.Sub(t)
		weekly = append(weekly, age)
		if age < p.DailyWindow {
			daily = append(daily, age)
		}
		if age < p.Cooldown {
			cooling = append(cooling, age)
		}
	}

	dec := domain.Decision{Allowed: true, Reason: domain.ReasonNone}
	checks := []struct {
		reason domain.Reason
		ages   []time.Duration
		window time.Duration
		limit  int
	}{
		{domain.ReasonCooldown, cooling, p.Cooldown, 1},
		{domain.ReasonDailyCap, daily, p.DailyWindow, p.DailyLimit},
		{domain.ReasonWeeklyCap, weekly, p.Retention, p.WeeklyLimit},
	}
	for _, c := range checks {
		if len(c.ages) < c.limit {
			continue
		}
		if dec.Allowed {
			dec.Allowed = false
			dec.Reason = c.reason
		}
		if wait := clearAfter(c.ages, c.window, c.limit); wait > dec.RetryAfter {
			dec.RetryAfter = wait
		}
	}
	return dec
}

// clearAfter calcula quanto tempo falta para que menos de `limit` idades
// fiquem abaixo de `window`. Assume len(ages) >= limit e todas < window.
func clearAfter(ages []time.Duration, window time.Duration, limit int) time.Duration {
	sorted := make([]time.Duration, len(ages))
	copy(sorted, ages)
	// mais velha primeiro: é a ordem em que as entradas saem da janela
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	return window - sorted[len(sorted)-limit]
}
