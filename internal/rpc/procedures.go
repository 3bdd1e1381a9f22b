package rpc

const (
	TaskServiceName  = "agileboard.v1.TaskService"
	EventServiceName = "agileboard.v1.EventService"
	AuthServiceName  = "agileboard.v1.AuthService"
)

const (
	QueryTasksProcedure = "/" + TaskServiceName + "/QueryTasks"
	InsertTaskProcedure = "/" + TaskServiceName + "/InsertTask"
	UpdateTaskProcedure = "/" + TaskServiceName + "/UpdateTask"
	DeleteTaskProcedure = "/" + TaskServiceName + "/DeleteTask"

	SubscribeTaskEventsProcedure = "/" + EventServiceName + "/SubscribeTaskEvents"

	SignUpProcedure = "/" + AuthServiceName + "/SignUp"
	SignInProcedure = "/" + AuthServiceName + "/SignIn"
)

// PublicProcedures can be called without a bearer token.
var PublicProcedures = []string{SignUpProcedure, SignInProcedure}

// ServiceNames is used for health reporting.
var ServiceNames = []string{TaskServiceName, EventServiceName, AuthServiceName}
