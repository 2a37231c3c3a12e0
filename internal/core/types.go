package core

import (
	"github.com/awcullen/opcua/ua"
)

// NodeDefinition describes an OPC UA node exposed by a twin
type NodeDefinition struct {
	Name         string      // Node name (e.g., "HeaterTemperature")
	DisplayName  string      // Human-readable name
	Description  string      // Description of the node
	DataType     DataType    // Data type (Double, Int32, String, etc.)
	Unit         string      // Engineering unit (°C, mm, mA, etc.)
	InitialValue interface{} // Initial/default value
}

// DataType represents OPC UA data types
type DataType int

const (
	DataTypeDouble DataType = iota
	DataTypeInt32
	DataTypeInt64
	DataTypeString
	DataTypeBool
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeDouble:
		return "Double"
	case DataTypeInt32:
		return "Int32"
	case DataTypeInt64:
		return "Int64"
	case DataTypeString:
		return "String"
	case DataTypeBool:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// OPCUADataType maps a DataType onto the OPC UA built-in data type node ID
func OPCUADataType(dt DataType) ua.NodeID {
	switch dt {
	case DataTypeInt32:
		return ua.DataTypeIDInt32
	case DataTypeInt64:
		return ua.DataTypeIDInt64
	case DataTypeString:
		return ua.DataTypeIDString
	case DataTypeBool:
		return ua.DataTypeIDBoolean
	default:
		return ua.DataTypeIDDouble
	}
}

// Namespace indexes used by the OPC UA server
const (
	NamespaceTwin uint16 = 2
)
