package tools

var functionTools = []actionTool{
	{
		name:     "getFunctionList",
		desc:     "List the cloud functions of the current environment.",
		service:  "scf",
		action:   "ListFunctions",
		envParam: "Namespace",
		readOnly: true,
		params: []param{
			{name: "limit", field: "Limit", kind: kindNumber, desc: "Page size (default 20)."},
			{name: "offset", field: "Offset", kind: kindNumber, desc: "Page offset."},
			{name: "searchKey", field: "SearchKey", kind: kindString, desc: "Filter by name."},
		},
	},
	{
		name:     "getFunctionDetail",
		desc:     "Show the configuration and status of one cloud function.",
		service:  "scf",
		action:   "GetFunction",
		envParam: "Namespace",
		readOnly: true,
		params: []param{
			{name: "name", field: "FunctionName", kind: kindString, required: true, desc: "Function name."},
		},
	},
	{
		name:     "invokeFunction",
		desc:     "Invoke a cloud function synchronously and return its result.",
		service:  "scf",
		action:   "Invoke",
		envParam: "Namespace",
		params: []param{
			{name: "name", field: "FunctionName", kind: kindString, required: true, desc: "Function name."},
			{name: "params", field: "ClientContext", kind: kindString, desc: "JSON encoded event passed to the function."},
		},
	},
	{
		name:     "getFunctionLogs",
		desc:     "Fetch recent invocation logs of a cloud function.",
		service:  "scf",
		action:   "GetFunctionLogs",
		envParam: "Namespace",
		readOnly: true,
		params: []param{
			{name: "name", field: "FunctionName", kind: kindString, required: true, desc: "Function name."},
			{name: "limit", field: "Limit", kind: kindNumber, desc: "Number of entries (max 100)."},
			{name: "offset", field: "Offset", kind: kindNumber, desc: "Entry offset."},
			{name: "startTime", field: "StartTime", kind: kindString, desc: "Start time, e.g. 2024-01-01 00:00:00."},
			{name: "endTime", field: "EndTime", kind: kindString, desc: "End time, e.g. 2024-01-02 00:00:00."},
			{name: "requestId", field: "FunctionRequestId", kind: kindString, desc: "Only logs of this invocation."},
		},
	},
	{
		name:     "updateFunctionConfig",
		desc:     "Update timeout, memory or environment variables of a cloud function.",
		service:  "scf",
		action:   "UpdateFunctionConfiguration",
		envParam: "Namespace",
		params: []param{
			{name: "name", field: "FunctionName", kind: kindString, required: true, desc: "Function name."},
			{name: "timeout", field: "Timeout", kind: kindNumber, desc: "Timeout in seconds."},
			{name: "memorySize", field: "MemorySize", kind: kindNumber, desc: "Memory in MB."},
			{name: "environment", field: "Environment", kind: kindObject, desc: `Environment variables as {"Variables":[{"Key":"k","Value":"v"}]}.`},
		},
	},
}
