package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"
	// OracleModulePrefix LLM调用模块
	OracleModulePrefix = "oracle"

	// EntityExperience 技能经验映射实体
	EntityExperience = "experience"
	// EntityCache 响应缓存实体
	EntityCache = "cache"

	// KeySkillExperienceMap 单份简历的完整技能经验映射 (STRING, JSON)
	// 整份映射作为一个值写入，保证原子替换
	// 格式: app:resume:experience:{resumeID}
	KeySkillExperienceMap = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityExperience + ":%s"

	// KeyOracleResponseCache LLM响应缓存 (STRING)
	// 格式: app:oracle:cache:{sha1(promptKind+input)}
	KeyOracleResponseCache = AppPrefix + ":" + OracleModulePrefix + ":" + EntityCache + ":%s"
)
