package domain

// ClientKey identifica quem dispara a requisição: o cliente (IP, API key...)
// e, em requisições de atualização, o merchant alvo. Leituras e requisições
// sem merchant usam só Client.
type ClientKey struct {
	Client   string
	Merchant MerchantID
}

// ClientRateLimiter limita o ritmo de requisições por ClientKey. É a proteção
// contra rajadas que fica na frente do gate (que lê o storage a cada chamada).
// Take consome uma vaga; se negar, a Decision traz ReasonClientRate e quanto
// esperar.
type ClientRateLimiter interface {
	Take(key ClientKey) Decision
}
