package whatsapp

import "fmt"

// Error categories
const (
	CategoryAuthentication = "authentication"
	CategoryPermission     = "permission"
	CategoryRateLimit      = "rate_limit"
	CategoryPayment        = "payment"
	CategoryUndeliverable  = "undeliverable"
	CategoryOptOut         = "opt_out"
	CategoryTemplate       = "template"
	CategoryPolicy         = "policy"
	CategoryQuality        = "quality"
	CategoryMedia          = "media"
	CategoryInvalidRequest = "invalid_request"
	CategoryIntegrity      = "integrity"
	CategoryRegistration   = "registration"
	CategoryServer         = "server"
	CategoryWindow         = "window"
	CategoryEcosystem      = "ecosystem"
	CategoryUnknown        = "unknown"
)

// Classification describes how a Cloud API error code should be handled.
type Classification struct {
	Code        int    `json:"code"`
	Category    string `json:"category"`
	UserMessage string `json:"user_message"`
	Action      string `json:"action"`
	Retryable   bool   `json:"retryable"`
	Critical    bool   `json:"critical"`
	OptOut      bool   `json:"opt_out"`
}

var knownErrors = map[int]Classification{
	1: {Category: CategoryServer, UserMessage: "Erro temporário na API do WhatsApp.",
		Action: "Tente novamente em alguns minutos.", Retryable: true},
	2: {Category: CategoryServer, UserMessage: "Serviço do WhatsApp temporariamente indisponível.",
		Action: "Tente novamente em alguns minutos.", Retryable: true},
	4: {Category: CategoryRateLimit, UserMessage: "Limite de chamadas da API atingido.",
		Action: "Aguarde antes de enviar novamente.", Retryable: true},
	10: {Category: CategoryPermission, UserMessage: "Permissão negada para esta operação.",
		Action: "Verifique as permissões do app no painel da Meta.", Critical: true},
	100: {Category: CategoryInvalidRequest, UserMessage: "Parâmetro inválido na requisição.",
		Action: "Revise os dados enviados."},
	190: {Category: CategoryAuthentication, UserMessage: "Token de acesso expirado ou inválido.",
		Action: "Gere um novo token de acesso nas configurações.", Critical: true},
	368: {Category: CategoryPolicy, UserMessage: "Conta temporariamente bloqueada por violação de políticas.",
		Action: "Revise as políticas do WhatsApp Business.", Critical: true},
	80007: {Category: CategoryRateLimit, UserMessage: "Limite de taxa da conta WhatsApp Business atingido.",
		Action: "Aguarde antes de enviar novamente.", Retryable: true},
	130429: {Category: CategoryRateLimit, UserMessage: "Limite de envio do número atingido.",
		Action: "Reduza a velocidade de envio.", Retryable: true},
	130472: {Category: CategoryEcosystem, UserMessage: "O número do destinatário faz parte de um experimento da Meta.",
		Action: "Nenhuma ação necessária."},
	131000: {Category: CategoryServer, UserMessage: "Erro genérico ao enviar a mensagem.",
		Action: "Tente novamente.", Retryable: true},
	131005: {Category: CategoryPermission, UserMessage: "Acesso negado ao número de telefone.",
		Action: "Verifique as permissões do token.", Critical: true},
	131008: {Category: CategoryTemplate, UserMessage: "Parâmetro obrigatório ausente.",
		Action: "Preencha todas as variáveis do template."},
	131009: {Category: CategoryTemplate, UserMessage: "Valor de parâmetro inválido.",
		Action: "Revise as variáveis do template."},
	131016: {Category: CategoryServer, UserMessage: "Serviço temporariamente sobrecarregado.",
		Action: "Tente novamente em alguns minutos.", Retryable: true},
	131021: {Category: CategoryInvalidRequest, UserMessage: "O destinatário não pode ser o próprio remetente.",
		Action: "Remova o número do remetente da lista."},
	131026: {Category: CategoryUndeliverable, UserMessage: "Mensagem não entregue: o número pode não ter WhatsApp ou não aceitou os termos atuais.",
		Action: "Verifique se o número está correto e ativo no WhatsApp.", Critical: true},
	131031: {Category: CategoryIntegrity, UserMessage: "Conta bloqueada pela Meta.",
		Action: "Entre em contato com o suporte da Meta.", Critical: true},
	131042: {Category: CategoryPayment, UserMessage: "Problema de pagamento na conta do WhatsApp Business.",
		Action: "Atualize o método de pagamento no Gerenciador de Negócios.", Critical: true},
	131045: {Category: CategoryRegistration, UserMessage: "Número de telefone não registrado corretamente.",
		Action: "Refaça o registro do número.", Critical: true},
	131047: {Category: CategoryWindow, UserMessage: "Janela de 24 horas expirada, use um template aprovado.",
		Action: "Envie um template aprovado para reabrir a conversa."},
	131048: {Category: CategoryQuality, UserMessage: "Limite de spam atingido: muitas mensagens bloqueadas ou denunciadas.",
		Action: "Reduza o volume e revise o conteúdo das mensagens.", Critical: true},
	131049: {Category: CategoryEcosystem, UserMessage: "A Meta optou por não entregar esta mensagem para preservar o engajamento.",
		Action: "Tente novamente mais tarde.", Retryable: true},
	131050: {Category: CategoryOptOut, UserMessage: "O usuário optou por não receber mensagens de marketing.",
		Action: "Remova o contato das campanhas de marketing.", OptOut: true},
	131051: {Category: CategoryInvalidRequest, UserMessage: "Tipo de mensagem não suportado.",
		Action: "Use um tipo de mensagem suportado."},
	131052: {Category: CategoryMedia, UserMessage: "Erro ao baixar a mídia enviada pelo usuário.",
		Action: "Peça para o usuário reenviar a mídia."},
	131053: {Category: CategoryMedia, UserMessage: "Erro ao enviar a mídia.",
		Action: "Verifique o formato e o tamanho do arquivo."},
	131056: {Category: CategoryRateLimit, UserMessage: "Muitas mensagens para o mesmo destinatário em pouco tempo.",
		Action: "Aguarde antes de enviar para este número novamente.", Retryable: true},
	131057: {Category: CategoryServer, UserMessage: "Conta em manutenção.",
		Action: "Tente novamente mais tarde.", Retryable: true},
	132000: {Category: CategoryTemplate, UserMessage: "Número de parâmetros não corresponde ao template.",
		Action: "Revise as variáveis do template."},
	132001: {Category: CategoryTemplate, UserMessage: "Template não existe no idioma informado ou não foi aprovado.",
		Action: "Confira o nome, o idioma e o status do template."},
	132005: {Category: CategoryTemplate, UserMessage: "Texto do template muito longo após a substituição das variáveis.",
		Action: "Use valores menores nas variáveis."},
	132007: {Category: CategoryTemplate, UserMessage: "Conteúdo viola a política de formatação do template.",
		Action: "Revise o conteúdo das variáveis."},
	132012: {Category: CategoryTemplate, UserMessage: "Formato de parâmetro não corresponde ao template.",
		Action: "Revise o tipo das variáveis."},
	132015: {Category: CategoryTemplate, UserMessage: "Template pausado por baixa qualidade.",
		Action: "Edite o template ou use outro."},
	132016: {Category: CategoryTemplate, UserMessage: "Template desativado por baixa qualidade.",
		Action: "Crie um novo template."},
	133010: {Category: CategoryRegistration, UserMessage: "Número de telefone não registrado na Cloud API.",
		Action: "Registre o número nas configurações.", Critical: true},
	135000: {Category: CategoryInvalidRequest, UserMessage: "Erro genérico do usuário.",
		Action: "Revise os dados enviados."},
}

var unknownError = Classification{
	Category:    CategoryUnknown,
	UserMessage: "Erro desconhecido ao enviar a mensagem.",
	Action:      "Consulte os logs para mais detalhes.",
}

var permissionRange = Classification{
	Category:    CategoryPermission,
	UserMessage: "Permissão negada para esta operação.",
	Action:      "Verifique as permissões do app no painel da Meta.",
	Critical:    true,
}

// Classify maps a Cloud API error code to its handling. Unrecognized codes
// fall back to the unknown category.
func Classify(code int) Classification {
	c, ok := knownErrors[code]
	if !ok {
		if code >= 200 && code <= 299 {
			c = permissionRange
		} else {
			c = unknownError
		}
	}
	c.Code = code
	return c
}

// FormatFailureReason renders "(#code) message" for logs and the CLI.
func FormatFailureReason(code int) string {
	return fmt.Sprintf("(#%d) %s", code, Classify(code).UserMessage)
}
