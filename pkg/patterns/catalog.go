package patterns

import "github.com/caremesh-ai/rampart/pkg/threat"

// =============================================================================
// RULE DEFINITIONS BY CATEGORY
// Expressions match the folded input form: lowercase, whitespace runs
// collapsed to single spaces. Write literal spaces, not \s+.
// =============================================================================

func (r *Registry) registerPromptOverrideRules() {
	cat := threat.CategoryPromptOverride
	fix := "Strip the instruction and process the remaining clinical content manually"

	r.register("instruction_ignore",
		`ignore (all |any )?(previous |prior |earlier |above )?(instructions|prompts|rules|directives|context)`,
		cat, 0.85, "Request to ignore standing instructions", fix)
	r.register("instruction_disregard",
		`disregard (your|all|any|previous|the) (training|instructions|rules|guidelines|safety)`,
		cat, 0.85, "Request to disregard training or rules", fix)
	r.register("instruction_forget",
		`forget (everything|all|what) (you|above|previous|was said)`,
		cat, 0.80, "Request to drop prior context", fix)
	r.register("instruction_supersede",
		`(new|updated|following) (instructions|rules|directives) (supersede|replace|override)`,
		cat, 0.80, "Claim that new instructions supersede existing ones", fix)
	r.register("system_prompt_probe",
		`(repeat|reveal|show|print|output) (your|the) (system prompt|initial instructions|hidden instructions)`,
		cat, 0.80, "Probe for the system prompt", fix)
	r.register("context_reset",
		`(the )?previous context is (invalid|void|cancelled)`,
		cat, 0.75, "Attempt to invalidate prior context", fix)
}

func (r *Registry) registerSQLInjectionRules() {
	cat := threat.CategoryInjectionSQL
	fix := "Reject the input; never interpolate it into a query"

	r.register("sql_tautology",
		`' ?or ?'[^']*' ?= ?'`,
		cat, 0.85, "Quoted OR tautology", fix)
	r.register("sql_numeric_tautology",
		`\b(or|and) +\d+ ?= ?\d+\b`,
		cat, 0.75, "Numeric tautology clause", fix)
	r.register("sql_stacked_ddl",
		`(;|') ?(drop|truncate|alter) +(table|database|index)`,
		cat, 0.90, "Stacked DDL statement", fix)
	r.register("sql_stacked_dml",
		`(;|') ?(delete|insert|update) +(from|into|[a-z_]+ set) `,
		cat, 0.85, "Stacked DML statement", fix)
	r.register("sql_union_select",
		`union (all )?select`,
		cat, 0.85, "UNION SELECT probe", fix)
	r.register("sql_comment_terminator",
		`'; ?--`,
		cat, 0.80, "Quote-terminated comment sequence", fix)
}

func (r *Registry) registerScriptInjectionRules() {
	cat := threat.CategoryInjectionScript
	fix := "Reject the input; escape before any HTML rendering"

	r.register("script_tag",
		`<script[ >]`,
		cat, 0.90, "Script tag", fix)
	r.register("javascript_uri",
		`javascript:`,
		cat, 0.80, "javascript: URI scheme", fix)
	r.register("event_handler",
		`<[a-z]+[^>]* on(load|error|click|mouseover) ?=`,
		cat, 0.80, "Inline event handler in markup", fix)
	r.register("iframe_tag",
		`<iframe[ >]`,
		cat, 0.80, "Iframe tag", fix)
}

func (r *Registry) registerCommandInjectionRules() {
	cat := threat.CategoryInjectionCommand
	fix := "Reject the input; never pass it to a shell"

	r.register("shell_chain",
		`(;|&&|\|\|) ?(rm|cat|curl|wget|nc|bash|sh|chmod|chown) `,
		cat, 0.85, "Chained shell command", fix)
	r.register("command_substitution",
		"(\\$\\(|`) ?(cat|curl|wget|rm|id|whoami|uname)",
		cat, 0.80, "Command substitution", fix)
	r.register("sensitive_file_read",
		`/etc/(passwd|shadow|sudoers)`,
		cat, 0.75, "Sensitive system file reference", fix)
	r.register("dev_tcp_redirect",
		`/dev/(tcp|udp)/`,
		cat, 0.80, "Shell network device redirection", fix)
}

func (r *Registry) registerExfiltrationRules() {
	cat := threat.CategoryDataExfiltration
	fix := "Block the request and review the session for data access attempts"

	r.register("bulk_export",
		`(export|dump|extract|transmit|upload|exfiltrate) (all |the |every |each )?(database|databases|records?|patient (data|records?|list)|credentials|conversation history)`,
		cat, 0.85, "Bulk export of protected records", fix)
	r.register("send_external",
		`send (it|them|this|the .{1,40}) to (this|that|the following|an external) (url|address|server|endpoint)`,
		cat, 0.80, "Redirect content to an external destination", fix)
	r.register("post_to_url",
		`(post|upload|forward) (it|them|the (data|results?)) to https?:`,
		cat, 0.80, "Upload of results to a URL", fix)
	r.register("enumerate_identifiers",
		`(list|show|give me) (all |every )?(patients?|users?|members?) (ssns?|social security|passwords?|dates of birth|addresses)`,
		cat, 0.80, "Enumeration of protected identifiers", fix)
}

func (r *Registry) registerJailbreakRules() {
	cat := threat.CategoryJailbreak
	fix := "Block the request; do not adopt the requested persona"

	r.register("unrestricted_persona",
		`you are now (an? )?(unrestricted|unfiltered|uncensored|jailbroken|free) (ai|assistant|model|agent)?`,
		cat, 0.85, "Unrestricted persona assignment", fix)
	r.register("no_rules_roleplay",
		`(pretend|act as if|imagine) (that )?(you|there) (have|are|exist) no (rules|restrictions|filters|guidelines|limits)`,
		cat, 0.80, "Roleplay without rules", fix)
	r.register("dan_mode",
		`\b(dan|do anything now) mode\b`,
		cat, 0.80, "Do-anything-now mode request", fix)
	r.register("safety_removal",
		`without (any )?(safety|ethical|moral) (limits|constraints|guidelines|considerations)`,
		cat, 0.75, "Request to drop safety constraints", fix)
	r.register("developer_mode",
		`enable developer mode`,
		cat, 0.70, "Developer mode request", fix)
}

func (r *Registry) registerMisinformationRules() {
	cat := threat.CategoryDomainMisinformation
	fix := "Flag for clinical review before any content is generated"

	r.register("miracle_cure",
		`(miracle|secret|suppressed) (cure|treatment|remedy)`,
		cat, 0.70, "Miracle cure language", fix)
	r.register("cure_all_claim",
		`(cures?|guaranteed to cure) (cancer|diabetes|any disease|all diseases)`,
		cat, 0.70, "Unsupported cure-all claim", fix)
	r.register("regulator_dismissal",
		`no (fda|regulatory|clinical) (approval|trials?|evidence) (is )?(needed|required|necessary)`,
		cat, 0.65, "Dismissal of regulatory evidence", fix)
	r.register("conspiracy_framing",
		`doctors (don't|do not|won't) want you to know`,
		cat, 0.65, "Medical conspiracy framing", fix)
}
