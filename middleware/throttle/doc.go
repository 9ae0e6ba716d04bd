// Package throttle fornece adapters HTTP (net/http) para o throttle de
// atualização de merchant.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: Gate (histórico, registro, decisão) e casos de uso sem net/http
//   - infra: storages (memória, arquivo, Redis, Postgres), stats, semáforo por merchant
//   - throttle (este pacote): middlewares HTTP + extração de merchant/cliente +
//     tradução da decisão para status/headers/JSON
//
// Fluxo no gateway, para PUT/PATCH/POST em <prefixo>/{id}:
//
//  1. Limite grosso por cliente (ClientLimitMiddleware)
//  2. Extrai o merchant e pede a decisão ao Gate (Middleware)
//  3. Se bloqueado, responde 429 com Retry-After e o motivo
//  4. Se permitido, registra a tentativa e segue, uma atualização por merchant
//     de cada vez (InFlightMiddleware), até o upstream
package throttle
