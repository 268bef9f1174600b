package tools

var cloudRunTools = []actionTool{
	{
		name:     "listCloudRunServices",
		desc:     "List the cloud run services of the current environment.",
		service:  "tcbr",
		action:   "DescribeCloudRunServers",
		envParam: "EnvId",
		readOnly: true,
		params: []param{
			{name: "pageSize", field: "PageSize", kind: kindNumber, desc: "Page size."},
			{name: "pageNum", field: "PageNum", kind: kindNumber, desc: "Page number, starting at 1."},
			{name: "serverName", field: "ServerName", kind: kindString, desc: "Filter by service name."},
		},
	},
	{
		name:     "getCloudRunService",
		desc:     "Show the configuration of one cloud run service.",
		service:  "tcbr",
		action:   "DescribeCloudRunServerDetail",
		envParam: "EnvId",
		readOnly: true,
		params: []param{
			{name: "serverName", field: "ServerName", kind: kindString, required: true, desc: "Service name."},
		},
	},
	{
		name:     "deleteCloudRunService",
		desc:     "Delete a cloud run service.",
		service:  "tcbr",
		action:   "DeleteCloudRunServer",
		envParam: "EnvId",
		params: []param{
			{name: "serverName", field: "ServerName", kind: kindString, required: true, desc: "Service name."},
		},
	},
}
