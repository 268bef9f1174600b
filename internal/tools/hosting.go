package tools

var hostingTools = []actionTool{
	{
		name:     "getWebsiteConfig",
		desc:     "Show the static website hosting configuration of the current environment.",
		service:  "tcb",
		action:   "DescribeStaticStore",
		envParam: "EnvId",
		readOnly: true,
	},
	{
		name:     "listHostingDomains",
		desc:     "List the custom domains bound to static hosting.",
		service:  "tcb",
		action:   "DescribeHostingDomain",
		envParam: "EnvId",
		readOnly: true,
	},
	{
		name:     "bindHostingDomain",
		desc:     "Bind a custom domain with an uploaded certificate to static hosting.",
		service:  "tcb",
		action:   "CreateHostingDomain",
		envParam: "EnvId",
		params: []param{
			{name: "domain", field: "Domain", kind: kindString, required: true, desc: "Domain name."},
			{name: "certId", field: "CertId", kind: kindString, required: true, desc: "SSL certificate id."},
		},
	},
	{
		name:     "unbindHostingDomain",
		desc:     "Remove a custom domain from static hosting.",
		service:  "tcb",
		action:   "DeleteHostingDomain",
		envParam: "EnvId",
		params: []param{
			{name: "domain", field: "Domain", kind: kindString, required: true, desc: "Domain name."},
		},
	},
}
