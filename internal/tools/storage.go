package tools

var storageTools = []actionTool{
	{
		name:     "getStorageACL",
		desc:     "Show the access control setting of cloud storage.",
		service:  "tcb",
		action:   "DescribeStorageACL",
		envParam: "EnvId",
		readOnly: true,
	},
	{
		name:     "setStorageACL",
		desc:     "Change the access control setting of cloud storage.",
		service:  "tcb",
		action:   "ModifyStorageACL",
		envParam: "EnvId",
		params: []param{
			{name: "aclTag", field: "AclTag", kind: kindString, required: true,
				desc: "One of READONLY, PRIVATE, ADMINWRITE, ADMINONLY."},
		},
	},
}
