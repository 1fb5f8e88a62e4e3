package writer

import (
	"fmt"
	"strings"

	"github.com/dnastudio/trendscout/engine/titles"
)

// maxModelScript is how much of a reference script is quoted in prompts.
const maxModelScript = 12000

const titleRules = `Você é um especialista em títulos virais para vídeos de storytelling dramático no YouTube.

Crie EXATAMENTE %d títulos diferentes e altamente clicáveis.

REGRAS CENTRAIS:
- Sempre em 1ª pessoa no idioma alvo (%s).
- Foque em conflito + evento concreto + reação emocional ou reviravolta.
- Comece direto com um fato emocional impactante ou uma injustiça clara.
- Inclua, quando natural, um local ou evento visual (casamento, jantar, formatura, leitura de testamento).
- Quando fizer sentido, use falas reais entre aspas para humanizar.
- Tamanho aproximado de até %d caracteres, sem ficar curto demais.
- Tom emocional e humano: mágoa, injustiça, humilhação, virada ou revelação.
`

var titleFormulas = []string{
	"They Told Me [Frase Cruel], So I [Reação/Revide]",
	`After [Situação Impactante], I Heard "[Fala Real]" That Changed Everything`,
	"My [Parente] Said [Fala Cruel] At [Evento Visual], So I Left With [Virada]",
	"[Ocasião Esperada] Turned Into [Surpresa Emocional]. I Wasn't Ready",
	"I Was [Verbo Forte] During [Evento], But [Virada ou Reação de Valor]",
	"Everyone Laughed When I [Ação Humilhante], Until [Reconhecimento Público]",
	"I Gave Them [Presente/Esforço Real]. They Gave Me [Humilhação ou Indiferença]",
	"While Everyone Was Celebrating, I Was [Ação de Dor]. And No One Noticed",
}

var titleCategories = []string{
	"Herança desigual revelada em funeral",
	"Humilhação pública em reunião de família",
	"Favoritismo escancarado em jantar de família",
	"Descoberta de traição durante viagem",
	"Filho ignorado em formatura",
	"Expulsão de casa por genro ou nora",
	"Sacrifício ignorado em doença familiar",
	"Mentiras reveladas em testamento",
	"Filha desprezada após cuidar dos pais",
	"Festa surpresa que vira humilhação",
	"Sogra tentando apagar nora das fotos",
	"Esposa excluída da decisão médica do marido",
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, it := range items {
		fmt.Fprintf(b, "%d) %s\n", i+1, it)
	}
}

func titlesPrompt(brief TitleBrief, keyword string, count int, channelTitles, viralTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, titleRules, count, brief.Language.Description(), titles.NormalizeCharLimit(brief.CharLimit))

	b.WriteString("\nCONTEXTO DO VÍDEO:\n")
	fmt.Fprintf(&b, "- Nicho: %s\n", brief.Niche)
	fmt.Fprintf(&b, "- Tema / Resumo: %s\n", brief.Theme)
	fmt.Fprintf(&b, "- Público alvo: %s\n", orDefault(brief.Audience, "não especificado"))
	fmt.Fprintf(&b, "- Categoria temática: %s\n", orDefault(brief.Category, "nenhuma (apenas contexto geral)"))
	fmt.Fprintf(&b, "- Título de referência: %s\n", orDefault(brief.ReferenceTitle, "nenhum"))
	fmt.Fprintf(&b, "- Palavra-chave principal: %s\n", keyword)

	b.WriteString("\nFÓRMULAS DE REFERÊNCIA (adapte sempre ao idioma alvo):\n")
	writeNumbered(&b, titleFormulas)

	b.WriteString("\nCATEGORIAS POSSÍVEIS (use só se combinar com o contexto):\n")
	for _, c := range titleCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	if len(channelTitles) > 0 {
		b.WriteString("\nESTILO DO CANAL DO CLIENTE, APENAS COMO REFERÊNCIA ESTRUTURAL:\n")
		writeNumbered(&b, channelTitles)
	}
	if len(viralTitles) > 0 {
		b.WriteString("\nTÍTULOS VIRAIS REAIS PARA SE INSPIRAR (NÃO COPIE):\n")
		writeNumbered(&b, viralTitles)
	}
	b.WriteString("\nSe houver poucos títulos de referência, use principalmente o contexto fornecido.\n")
	b.WriteString(`Responda com uma lista de objetos {"title": "..."}.`)
	return b.String()
}

func writeParams(b *strings.Builder, p ScriptParams) {
	fmt.Fprintf(b, "- Nicho: %s\n", p.Niche)
	fmt.Fprintf(b, "- Subnicho: %s\n", p.Subniche)
	fmt.Fprintf(b, "- Perspectiva: %s\n", p.Perspective)
	fmt.Fprintf(b, "- Tom / Estilo: %s\n", p.NarrativeTone)
	fmt.Fprintf(b, "- Público alvo: %s\n", p.TargetAudience)
	fmt.Fprintf(b, "- Emoção principal: %s\n", p.Emotion)
	fmt.Fprintf(b, "- Idade média da audiência: %s\n", p.AgeGroup)
}

func conceptsPrompt(p ScriptParams, count int) string {
	var b strings.Builder
	b.WriteString("Você é um roteirista especialista em histórias de drama familiar para YouTube, focado em mulheres e alta retenção.\n\n")
	fmt.Fprintf(&b, "Gere exatamente %d opções de CONCEITO DE ROTEIRO, cada uma com id, title, synopsis e hookPreview.\n\n", count)
	b.WriteString(`REGRAS:
- Sinopses em primeira pessoa ("eu"), como se a protagonista contasse a própria história, em 4 a 6 frases.
- Linguagem coloquial, natural e cotidiana, sem palavras difíceis e sem clichês.
- Conflitos de drama familiar: casamento, filhos, sogra, herança, traição, abandono, humilhação, segredos, recomeços.
- Cada sinopse entrega a promessa do título sem revelar o final.
- O hookPreview é uma frase forte em primeira pessoa que já traz o conflito.

DADOS BASE:
`)
	fmt.Fprintf(&b, "- Título sugerido: %s\n", orDefault(p.VideoTitle, "Deixe a IA sugerir"))
	writeParams(&b, p)
	fmt.Fprintf(&b, "- Ritmo: %s\n", p.Pace)
	fmt.Fprintf(&b, "- Estilo de roteiro: %s\n", p.ScriptStyle)
	fmt.Fprintf(&b, "- Idioma: %s\n", p.Language)
	fmt.Fprintf(&b, "- Tema específico detalhado: %s\n", p.Synopsis)
	if strings.TrimSpace(p.CustomPrompt) != "" {
		fmt.Fprintf(&b, "Instruções extras do usuário: %s\n", p.CustomPrompt)
	}
	return b.String()
}

const baseBehavior = `Você é um gerador de roteiros especializado em histórias de drama familiar para vídeos longos no YouTube, focado em mulheres e alta retenção.

Regras gerais de escrita:
- Narre SEMPRE em primeira pessoa ("eu"), como um desabafo.
- Linguagem simples, coloquial e natural, sem formalidade, sem gírias exageradas e sem clichês.
- Conflitos reais: casamento, filhos, sogra, família tóxica, traição, herança, abandono, humilhação, recomeços.
- História emocional, clara e realista, sem invenções que fujam do contexto do formulário.

Estrutura obrigatória:
- Abertura com HOOK + CONFLITO, narrando o título logo nos primeiros segundos, sem spoiler do final.
- Desenvolvimento que adiciona novas tensões ou revelações a cada bloco.
- Clímax com um ponto de virada forte.
- Desfecho com resolução e reflexão final.
- Moral com foco em autoajuda, empoderamento feminino, limites saudáveis e recomeços.

CTAs obrigatórios:
- No BLOCO 2: pergunte de onde a pessoa está ouvindo e peça inscrição no canal.
- No BLOCO 4: peça curtida de forma natural.
- No FINAL (cta): agradeça, peça comentários, pergunte se já viveram algo semelhante e peça curtida e inscrição.

Retenção:
- Mini-ganchos no final de cada bloco.
- Nunca explique que isso é um roteiro; apenas conte a história.
- Não copie trechos de nada; gere conteúdo sempre novo.
`

// behavior picks the instruction block: a model script wins over a custom
// prompt, which wins over the built-in rules.
func behavior(p ScriptParams) string {
	if model := strings.TrimSpace(p.ModelScript); model != "" {
		r := []rune(p.ModelScript)
		if len(r) > maxModelScript {
			r = r[:maxModelScript]
		}
		return `Você recebeu um ROTEIRO-MODELO para usar APENAS como referência de ESTRUTURA NARRATIVA, nunca como conteúdo.

ROTEIRO-MODELO (NÃO COPIAR CONTEÚDO):

"""` + string(r) + `"""

Instruções obrigatórias:
- Use o modelo só para entender blocos, ritmo, abertura, clímax, encerramento e CTAs.
- Gere uma história 100% nova, com personagens, conflitos, diálogos e desfechos diferentes.
- É PROIBIDO copiar frases, nomes, cidades ou acontecimentos do roteiro-modelo.
- Os dados do formulário são a fonte principal de conteúdo.
`
	}
	if strings.TrimSpace(p.CustomPrompt) != "" {
		return `Siga com prioridade as instruções personalizadas abaixo, acima de qualquer regra interna. Mantenha os CTAs, a estrutura em blocos e o foco em drama familiar:

"""` + p.CustomPrompt + `"""

Reforce: primeira pessoa, linguagem coloquial, conflito logo no início e final com moral.
`
	}
	return baseBehavior
}

func paceExplanation(pace string) string {
	switch pace {
	case "Lento":
		return "Lento: sofrimento prolongado, tensão emocional forte, introspecção."
	case "Rápido":
		return "Rápido: explosões emocionais, discussões, decisões impulsivas."
	default:
		return "Moderado: drama equilibrado, com a emoção fluindo junto da história."
	}
}

func scriptPrompt(p ScriptParams, c Concept) string {
	var b strings.Builder
	b.WriteString(behavior(p))
	b.WriteString("\nCom base no CONCEITO e nas configurações abaixo, escreva o roteiro completo com title, intro, chapters (title, content), moral e cta.\n\n")

	b.WriteString("CONCEITO ESCOLHIDO:\n")
	fmt.Fprintf(&b, "- Título base: %s\n", c.Title)
	fmt.Fprintf(&b, "- Sinopse: %s\n", c.Synopsis)
	fmt.Fprintf(&b, "- Hook sugerido: %s\n\n", c.HookPreview)

	b.WriteString("CONFIGURAÇÕES DO ROTEIRO:\n")
	writeParams(&b, p)
	fmt.Fprintf(&b, "- Ritmo: %s (%s)\n", p.Pace, paceExplanation(p.Pace))
	fmt.Fprintf(&b, "- Estilo de roteiro: %s\n", p.ScriptStyle)
	fmt.Fprintf(&b, "- Idioma: %s\n", p.Language)
	fmt.Fprintf(&b, "- Quantidade de blocos: %d\n", p.ChapterCount)
	fmt.Fprintf(&b, "- Caracteres aproximados por bloco: %d\n", p.CharsPerBlock)
	fmt.Fprintf(&b, "- Comprimento alvo do roteiro: cerca de %d caracteres.\n\n", p.ChapterCount*p.CharsPerBlock)

	fmt.Fprintf(&b, "Divida a história em exatamente %d blocos, cada um com cerca de %d caracteres, sem blocos muito curtos ou muito longos.\n",
		p.ChapterCount, p.CharsPerBlock)
	return b.String()
}

func adjustPrompt(delta int, expand bool, encoded []byte) string {
	direction := fmt.Sprintf("REDUZIR o texto em aproximadamente %d caracteres, removendo redundâncias sem quebrar a história.", delta)
	if expand {
		direction = fmt.Sprintf("AUMENTAR o texto em aproximadamente %d caracteres.", delta)
	}
	var b strings.Builder
	b.WriteString("Você é um editor de roteiros de drama familiar.\n\n")
	b.WriteString("Mantenha a MESMA história, estrutura, personagens, tom e CTAs, apenas ")
	b.WriteString(direction)
	b.WriteString(`

REGRAS:
- Mantenha a primeira pessoa ("eu").
- Não troque o conflito central nem o desfecho.
- Não remova CTAs existentes nem adicione personagens importantes.
- Ajuste apenas detalhes, descrições, transições, ritmo e diálogo.

ROTEIRO ATUAL:

`)
	b.Write(encoded)
	return b.String()
}
