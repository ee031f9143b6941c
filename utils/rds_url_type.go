/*
  Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.

  Licensed under the Apache License, Version 2.0 (the "License").
  You may not use this file except in compliance with the License.
  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

  Unless required by applicable law or agreed to in writing, software
  distributed under the License is distributed on an "AS IS" BASIS,
  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
  See the License for the specific language governing permissions and
  limitations under the License.
*/

package utils

type RdsUrlType struct {
	name         string
	IsRds        bool
	IsRdsCluster bool
}

func (t RdsUrlType) String() string {
	return t.name
}

var (
	IP_ADDRESS         = RdsUrlType{"ipAddress", false, false}
	RDS_WRITER_CLUSTER = RdsUrlType{"rdsWriterCluster", true, true}
	RDS_READER_CLUSTER = RdsUrlType{"rdsReaderCluster", true, true}
	RDS_CUSTOM_CLUSTER = RdsUrlType{"rdsCustomCluster", true, true}
	RDS_PROXY          = RdsUrlType{"rdsProxy", true, false}
	RDS_INSTANCE       = RdsUrlType{"rdsInstance", true, false}
	OTHER              = RdsUrlType{"other", false, false}
)
