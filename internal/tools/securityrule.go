package tools

var securityRuleTools = []actionTool{
	{
		name:     "readSecurityRule",
		desc:     "Read the security rule of a collection, function or storage bucket.",
		service:  "tcb",
		action:   "DescribeSecurityRule",
		envParam: "EnvId",
		readOnly: true,
		params: []param{
			{name: "resourceType", field: "ResourceType", kind: kindString, required: true, desc: "DATABASE, FUNCTION or STORAGE."},
			{name: "resourceId", field: "Resource", kind: kindString, required: true, desc: "Collection name, function name or bucket."},
		},
	},
	{
		name:     "writeSecurityRule",
		desc:     "Replace the security rule of a collection, function or storage bucket.",
		service:  "tcb",
		action:   "ModifySecurityRule",
		envParam: "EnvId",
		params: []param{
			{name: "resourceType", field: "ResourceType", kind: kindString, required: true, desc: "DATABASE, FUNCTION or STORAGE."},
			{name: "resourceId", field: "Resource", kind: kindString, required: true, desc: "Collection name, function name or bucket."},
			{name: "aclTag", field: "AclTag", kind: kindString, required: true, desc: "READONLY, PRIVATE, ADMINWRITE, ADMINONLY or CUSTOM."},
			{name: "rule", field: "Rule", kind: kindString, desc: "JSON rule text, required when aclTag is CUSTOM."},
		},
	},
}
