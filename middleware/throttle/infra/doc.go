// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - Storage: memória, arquivo JSON, SQLite, Redis (go-redis) e Postgres (lib/pq)
//   - Stats: memória, Redis e Prometheus
//   - KeyedPool: semáforo por merchant para atualizações simultâneas
//   - ClientRateLimiter: token bucket por (cliente, merchant) usando golang.org/x/time/rate
package infra
