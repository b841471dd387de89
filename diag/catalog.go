package diag

import "sort"

// User error codes.
const (
	DC0001 Code = "DC0001"
	DC0002 Code = "DC0002"
	DC0003 Code = "DC0003"
	DC0004 Code = "DC0004"
	DC0005 Code = "DC0005"
	DC0006 Code = "DC0006"
	DC0007 Code = "DC0007"
	DC0008 Code = "DC0008"
	DC0009 Code = "DC0009"
	DC0010 Code = "DC0010"
	DC0011 Code = "DC0011"
	DC0012 Code = "DC0012"
	DC0013 Code = "DC0013"
	DC0014 Code = "DC0014"
	DC0015 Code = "DC0015"
	DC0016 Code = "DC0016"
	DC0017 Code = "DC0017"
	DC0018 Code = "DC0018"
	DC0019 Code = "DC0019"
	DC0020 Code = "DC0020"
	DC0021 Code = "DC0021"
	DC0023 Code = "DC0023"
	DC0024 Code = "DC0024"
	DC0025 Code = "DC0025"
	DC0026 Code = "DC0026"
	DC0027 Code = "DC0027"
	DC0028 Code = "DC0028"
	DC0029 Code = "DC0029"
	DC0031 Code = "DC0031"
	DC0032 Code = "DC0032"
	DC0033 Code = "DC0033"
	DC0034 Code = "DC0034"
	DC0035 Code = "DC0035"
	DC0036 Code = "DC0036"
	DC0037 Code = "DC0037"
	DC0038 Code = "DC0038"
	DC0043 Code = "DC0043"
	DC0044 Code = "DC0044"
	DC0045 Code = "DC0045"
	DC0046 Code = "DC0046"
	DC0047 Code = "DC0047"
)

// Internal error codes.
const (
	DCICE001 Code = "DCICE001"
	DCICE002 Code = "DCICE002"
	DCICE003 Code = "DCICE003"
	DCICE004 Code = "DCICE004"
	DCICE005 Code = "DCICE005"
	DCICE006 Code = "DCICE006"
	DCICE007 Code = "DCICE007"
	DCICE008 Code = "DCICE008"
)

var catalog = map[Code]string{
	DC0001: "Entities.ForEach Lambda expression uses field '%v'. Either assign the field to a local outside of the lambda expression and use that instead, or use .WithoutBurst() and .Run()",
	DC0002: "Entities.ForEach Lambda expression invokes '%v' on a %v which is a reference type. This is only allowed with .WithoutBurst() and .Run().",
	DC0003: "The name '%v' is already used in this system.",
	DC0004: "Entities.ForEach Lambda expression captures a non-value type '%v'. This is only allowed with .WithoutBurst() and .Run()",
	DC0005: "Entities.ForEach Lambda expression parameter '%v' with type %v is not supported",
	DC0006: "Scheduling an Entities query requires a .ForEach invocation",
	DC0007: "Unexpected code structure in Entities/Job invocation. Make sure the chain ends in .Schedule(), .ScheduleParallel() or .Run().",
	DC0008: "The argument to %v needs to be a literal value.",
	DC0009: "%v is only allowed to be called once.",
	DC0010: "The Entities.ForEach statement contains dynamic code that cannot be statically analyzed.",
	DC0011: "Every Entities.ForEach statement needs to end with a .Schedule(), .ScheduleParallel() or .Run() invocation.",
	DC0012: "Entities.%v is called with an invalid argument. You can only use captured local variables as arguments.",
	DC0013: "Entities.ForEach Lambda expression writes to captured variable '%v'. This is only supported when you use .Run().",
	DC0014: "Entities.ForEach Lambda expression parameter '%v' is not a supported parameter. Supported parameter names are %v",
	DC0015: "Entities.ForEach will never run because it both requires and excludes %v",
	DC0016: "Entities.ForEach lists both WithAny and WithNone %v",
	DC0017: "Scheduling a Job requires a .WithCode invocation",
	DC0018: "Scheduling a Chunks query requires a .ForEach invocation",
	DC0019: "Entities.ForEach uses ISharedComponentData %v. This is only supported when using .WithoutBurst() and .Run()",
	DC0020: "ISharedComponentData %v is passed by reference to Entities.ForEach. Please pass it by value or with in.",
	DC0021: "parameter '%v' has type %v. This type is not a IComponentData / ISharedComponentData and is therefore not a supported parameter type for Entities.ForEach.",
	DC0023: "Entities.ForEach uses managed IComponentData %v. This is only supported when using .WithoutBurst() and .Run().",
	DC0024: "Entities.ForEach uses managed IComponentData %v by ref. To get write access, receive it without the ref modifier.",
	DC0025: "%v",
	DC0026: "%v",
	DC0027: "Entities.ForEach Lambda expression makes a structural change. Use an EntityCommandBuffer to make structural changes or add a .WithStructuralChanges invocation to the Entities.ForEach to allow for structural changes.",
	DC0028: "Entities.ForEach Lambda expression makes a structural change, which is only allowed with .Run().",
	DC0029: "Entities.ForEach Lambda expression has a nested Entities.ForEach Lambda expression. Only a single Entities.ForEach Lambda expression is currently supported.",
	DC0031: "Entities.WithStoreEntityQueryInField must be passed a field of the containing system.",
	DC0032: "Entities.ForEach is used in system %v which has [ExecuteAlways]. This is not supported and the job will run only when the system updates normally.",
	DC0033: "parameter '%v' has type %v. This type is an IBufferElementData and has to be received as DynamicBuffer<%[2]v>.",
	DC0034: "Entities.WithReadOnly is called with an argument %v of unsupported type %v. It can only be called with an argument that is marked with [NativeContainerAttribute] or a type that has a field marked with [NativeContainerAttribute].",
	DC0035: "Entities.WithDeallocateOnJobCompletion is called with an argument %v of unsupported type %v. It can only be called with an argument that is marked with [NativeContainerSupportsDeallocateOnJobCompletionAttribute] or a type that has a field marked with it.",
	DC0036: "Entities.WithNativeDisableContainerSafetyRestriction is called with an argument %v of unsupported type %v. It can only be called with an argument that is marked with [NativeContainerAttribute] or a type that has a field marked with [NativeContainerAttribute].",
	DC0037: "Entities.WithNativeDisableParallelForRestriction is called with an argument %v of unsupported type %v. It can only be called with an argument that is marked with [NativeContainerAttribute] or a type that has a field marked with [NativeContainerAttribute].",
	DC0038: "Entities.%v is called with an argument %v. Only captured local variables can be used with this modifier, not fields of user types.",
	DC0043: "The name '%v' passed to WithName is invalid. Names may contain only letters, digits and underscores, may not start with a digit and may not contain double underscores.",
	DC0044: "Entities.ForEach can only be used with an inline lambda. Calling it with a delegate stored in a variable, field or returned from a method is not supported.",
	DC0045: "Entities.ForEach calls %v with an argument that depends on branching code. Only a single straight-line expression is supported as an argument.",
	DC0046: "Entities.ForEach uses %v with write access for type %v, which is also a parameter of the lambda. Access the component through the parameter instead.",
	DC0047: "Entities.ForEach uses %v for type %v, which is also a parameter of the lambda taken by ref. Receive the parameter with in or by value instead.",

	DCICE001: "Entities.ForEach Lambda expression uses something from its outer class. This is not supported.",
	DCICE002: "Unable to find ldftn and newobj pair that creates the delegate for the invocation of %v.",
	DCICE003: "Could not find the parameter %v of %v in the job struct.",
	DCICE004: "Unexpected operand type %v while cloning the lambda body.",
	DCICE005: "Could not resolve %v.",
	DCICE006: "The constructor of display class %v is not followed by a store to a local variable.",
	DCICE007: "Could not find the captured variable that corresponds to the argument of %v.",
	DCICE008: "Replacing %v changed the stack effect from %d to %d.",
}

// Template returns the message template of a code.
func Template(code Code) (string, bool) {
	t, ok := catalog[code]
	return t, ok
}

// Codes returns every known code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
